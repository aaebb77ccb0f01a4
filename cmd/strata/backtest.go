package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/strataquant/strata/internal/backtest"
	"github.com/strataquant/strata/internal/collector"
	"github.com/strataquant/strata/internal/collector/yahoo"
	"github.com/strataquant/strata/internal/config"
	"github.com/strataquant/strata/internal/core"
)

var (
	backtestSymbols []string
	backtestFrom    string
	backtestTo      string
	backtestCapital float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy backtest",
	Long:  "Simulate the strategy over historical data and print the performance report",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbols", nil, "Symbols to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Initial capital (defaults to config)")

	backtestCmd.MarkFlagRequired("symbols")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	fromDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
	}
	toDate, err := time.Parse("2006-01-02", backtestTo)
	if err != nil {
		return fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
	}
	if toDate.Before(fromDate) {
		return fmt.Errorf("end date must be after start date")
	}

	capital := cfg.Backtest.InitialCapital
	if backtestCapital > 0 {
		capital = backtestCapital
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	engine := backtest.New(provider, log)

	result, err := engine.Run(cmd.Context(), backtest.Request{
		Symbols:        backtestSymbols,
		Start:          fromDate,
		End:            toDate,
		InitialCapital: capital,
		Params:         cfg.Backtest.Strategy.Params(),
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printReport(result)
	return nil
}

func buildProvider(cfg *config.Config) (collector.BarProvider, error) {
	switch cfg.Data.Provider {
	case "yahoo":
		opts := []yahoo.Option{
			yahoo.WithUniverse(cfg.Data.Universe),
			yahoo.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Data.TimeoutSeconds) * time.Second,
			}),
		}
		if cfg.Data.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(cfg.Data.BaseURL))
		}
		return yahoo.New(opts...), nil
	case "static":
		return collector.NewStatic(nil), nil
	default:
		return nil, fmt.Errorf("unknown data provider: %s", cfg.Data.Provider)
	}
}

func printReport(r *backtest.Result) {
	fmt.Println("=== Strata Backtest Report ===")
	fmt.Printf("Period:           %s to %s\n",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Printf("Initial capital:  %.2f\n", r.InitialCapital)
	fmt.Printf("Final capital:    %.2f\n", r.FinalCapital)
	fmt.Printf("Total return:     %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("Annual return:    %.2f%%\n", r.AnnualReturn*100)
	fmt.Printf("Max drawdown:     %.2f%%\n", r.MaxDrawdown*100)
	fmt.Println()

	s := r.Stats
	fmt.Printf("Closed trades:    %d (%d wins / %d losses, win rate %.1f%%)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate*100)
	fmt.Printf("Avg win / loss:   %.2f%% / %.2f%%\n", s.AvgWin*100, s.AvgLoss*100)
	fmt.Printf("Max win / loss:   %.2f%% / %.2f%%\n", s.MaxWin*100, s.MaxLoss*100)
	fmt.Printf("Profit factor:    %.2f\n", s.ProfitFactor)
	fmt.Printf("Avg holding days: %.1f\n", s.AvgHoldingDays)

	if len(r.Symbols) > 0 {
		fmt.Println()
		fmt.Println("Per symbol:")
		for _, sp := range r.Symbols {
			fmt.Printf("  %-12s %3d trades, win rate %5.1f%%, profit %12.2f\n",
				sp.Symbol, sp.Trades, sp.WinRate*100, sp.Profit)
		}
	}

	if len(r.Skipped) > 0 {
		fmt.Println()
		fmt.Println("Skipped symbols:")
		for _, sk := range r.Skipped {
			fmt.Printf("  %-12s %s\n", sk.Symbol, sk.Reason)
		}
	}

	if len(r.Trades) > 0 {
		fmt.Println()
		fmt.Println("Trades:")
		for _, t := range r.Trades {
			if t.Action == core.ActionSell {
				fmt.Printf("  %s %-4s %-12s %8.2f x %-6d  profit %10.2f (%.2f%%)  %s\n",
					t.Date.Format("2006-01-02"), t.Action, t.Symbol,
					t.Price, t.Quantity, t.Profit, t.ProfitRate*100, t.Reason)
				continue
			}
			fmt.Printf("  %s %-4s %-12s %8.2f x %-6d  confidence %.2f\n",
				t.Date.Format("2006-01-02"), t.Action, t.Symbol,
				t.Price, t.Quantity, t.Confidence)
		}
	}
}
