package core

import "time"

// Action represents a trade direction in the ledger
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Bar represents one symbol's data for a single trading day.
//
// The derived indicator fields are nil until the warm-up window for the
// indicator is complete. Nil means "not yet computable" and must never be
// read as zero.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Oscillators and trend indicators
	RSI           *float64
	MACD          *float64
	MACDSignal    *float64
	MACDHistogram *float64

	// Moving averages
	MA5  *float64
	MA20 *float64
	MA60 *float64

	// Volume confirmation
	VolumeMA20  *float64
	VolumeRatio *float64

	// Volatility and momentum
	ATR           *float64
	PriceMomentum *float64

	// Recurrence accumulators. AvgGain/AvgLoss carry the Wilder state
	// for RSI; EMA12/EMA26 carry the MACD EMA chain.
	AvgGain *float64
	AvgLoss *float64
	EMA12   *float64
	EMA26   *float64
}

// IsValid checks if the bar has usable price fields
func (b Bar) IsValid() bool {
	return b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0
}

// Day returns the bar's date truncated to UTC midnight. All calendar
// bookkeeping in the engine keys off this value.
func (b Bar) Day() time.Time {
	return Day(b.Date)
}

// Day truncates a timestamp to UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v. Used when populating optional indicator
// fields.
func Float(v float64) *float64 {
	return &v
}
