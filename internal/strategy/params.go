// Package strategy implements the trading decision procedure: a
// confidence scorer over indicator state, a two-sided entry/exit
// evaluator, and confidence/exposure-driven position sizing.
package strategy

// Params is the immutable configuration for one simulation run. It is
// created once per run and passed by value into every decision function;
// nothing in this package mutates it.
//
// Validation is the caller's responsibility: the decision functions
// assume sane periods and thresholds.
type Params struct {
	// Indicator periods
	RSIPeriod           int
	MACDFast            int
	MACDSlow            int
	MACDSignal          int
	ATRPeriod           int
	PriceMomentumPeriod int

	// Entry thresholds
	RSIOversold            float64
	VolumeThreshold        float64
	PriceMomentumThreshold float64
	ConfidenceThreshold    float64

	// Risk limits
	StopLoss         float64 // positive fraction, e.g. 0.08
	StopProfit       float64
	MaxPositionSize  float64
	MaxTotalExposure float64
	MinHoldingDays   int

	// Feature toggles
	EnableTrailingStop  bool
	EnableATRStop       bool
	EnablePriceMomentum bool
	EnableMA60          bool
	StrictScoring       bool // lower base score, stricter RSI bands
	HierarchicalEntry   bool // with StrictScoring, adds the momentum veto
	DynamicPositionSize bool

	// Trailing stop
	TrailingStopPercent     float64
	TrailingActivatePercent float64
}

// DefaultParams returns the standard daily-bar parameter set.
func DefaultParams() Params {
	return Params{
		RSIPeriod:           14,
		MACDFast:            12,
		MACDSlow:            26,
		MACDSignal:          9,
		ATRPeriod:           14,
		PriceMomentumPeriod: 20,

		RSIOversold:            30,
		VolumeThreshold:        1.0,
		PriceMomentumThreshold: 0.05,
		ConfidenceThreshold:    0.60,

		StopLoss:         0.08,
		StopProfit:       0.15,
		MaxPositionSize:  0.30,
		MaxTotalExposure: 0.75,
		MinHoldingDays:   5,

		EnableTrailingStop:  true,
		EnableATRStop:       true,
		EnablePriceMomentum: true,
		EnableMA60:          true,
		StrictScoring:       false,
		HierarchicalEntry:   false,
		DynamicPositionSize: true,

		TrailingStopPercent:     0.08,
		TrailingActivatePercent: 0.10,
	}
}
