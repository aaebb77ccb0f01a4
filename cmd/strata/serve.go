package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strataquant/strata/internal/api"
	"github.com/strataquant/strata/internal/backtest"
	"github.com/strataquant/strata/internal/config"
	"github.com/strataquant/strata/internal/logger"
	"github.com/strataquant/strata/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Strata API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting Strata server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	reg := metrics.NewRegistry()
	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	engine := backtest.New(provider, log, backtest.WithMetrics(reg))

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		APIKey:         cfg.Server.APIKey,
		MetricsPath:    metricsPath,
		JobTTL:         time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MaxJobs:        cfg.Server.MaxJobs,
		DefaultParams:  cfg.Backtest.Strategy.Params(),
		DefaultCapital: cfg.Backtest.InitialCapital,
	}, engine, reg, log)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down Strata server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	if debug {
		return logger.New(true)
	}
	return logger.NewWithOptions(cfg.Logging.Level, cfg.Logging.Format)
}
