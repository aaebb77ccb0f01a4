// Package backtest simulates a parameterized trading strategy over
// historical daily bars, producing a trade ledger, an equity curve, and
// aggregate performance statistics.
package backtest

import (
	"time"

	"github.com/strataquant/strata/internal/core"
	"github.com/strataquant/strata/internal/strategy"
)

// Request describes one backtest run.
type Request struct {
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Params         strategy.Params
}

// Position is an open holding for one symbol. It is owned exclusively by
// the engine from buy fill to sell fill.
type Position struct {
	Symbol       string
	SignalDate   time.Time // day the entry signal fired
	EntryDate    time.Time // day the buy order filled
	EntryPrice   float64
	Quantity     int64
	InvestAmount float64 // cash debited, fees included
	Confidence   float64
	EntryATR     *float64

	State strategy.PositionState
}

// pendingBuy is an entry signal awaiting its T+1 fill.
type pendingBuy struct {
	Symbol     string
	SignalDate time.Time
	ExecuteOn  time.Time // zero when the run ended before the next trading day
	Confidence float64
	Reason     string
}

// pendingSell is an exit signal awaiting its T+1 fill. Snapshot copies
// the position at signal time so the ledger is insulated from mutations
// the live position undergoes during the one-day lag.
type pendingSell struct {
	Symbol     string
	SignalDate time.Time
	ExecuteOn  time.Time
	Reason     string
	Snapshot   Position
}

// Trade is an immutable ledger record. Profit, ProfitRate and
// HoldingDays are populated on sells only. The signal/execution date
// pairs are kept separately for each side because of the T+1 lag.
type Trade struct {
	Symbol      string      `json:"symbol"`
	Action      core.Action `json:"action"`
	Date        time.Time   `json:"date"` // execution date of this trade
	Price       float64     `json:"price"`
	Quantity    int64       `json:"quantity"`
	Amount      float64     `json:"amount"`
	Profit      float64     `json:"profit"`
	ProfitRate  float64     `json:"profit_rate"`
	HoldingDays int         `json:"holding_days"`
	Confidence  float64     `json:"confidence"`
	Reason      string      `json:"reason"`

	BuySignalDate  time.Time `json:"buy_signal_date"`
	BuyDate        time.Time `json:"buy_date"`
	SellSignalDate time.Time `json:"sell_signal_date,omitempty"` // zero on buys
	SellDate       time.Time `json:"sell_date,omitempty"`        // zero on buys
}

// EquityPoint is one trading day of the equity curve. Value is always
// Cash + Positions.
type EquityPoint struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Cash      float64   `json:"cash"`
	Positions float64   `json:"positions"`
}

// TradeStats aggregates the closed (sell) trades of a run. Win figures
// are positive profit rates; loss figures are negative (MaxLoss is the
// most negative rate observed).
type TradeStats struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	MaxWin         float64 `json:"max_win"`
	AvgLoss        float64 `json:"avg_loss"`
	MaxLoss        float64 `json:"max_loss"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
	ProfitFactor   float64 `json:"profit_factor"`
}

// SymbolPerformance summarizes the closed trades of one symbol.
type SymbolPerformance struct {
	Symbol  string  `json:"symbol"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	Profit  float64 `json:"profit"`
}

// SkippedSymbol records a symbol excluded from a run and why, so a
// partially successful run can report the reduced universe it used.
type SkippedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Result is the complete output of one run.
type Result struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalProfit    float64   `json:"total_profit"`
	TotalReturn    float64   `json:"total_return"`
	AnnualReturn   float64   `json:"annual_return"`
	MaxDrawdown    float64   `json:"max_drawdown"`

	Stats       TradeStats          `json:"stats"`
	Trades      []Trade             `json:"trades"`
	EquityCurve []EquityPoint       `json:"equity_curve"`
	Symbols     []SymbolPerformance `json:"symbols"`
	Skipped     []SkippedSymbol     `json:"skipped,omitempty"`
}
