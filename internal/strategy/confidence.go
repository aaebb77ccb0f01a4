package strategy

import "github.com/strataquant/strata/internal/core"

// Confidence score bounds and mode bases.
const (
	maxConfidence      = 0.95
	baseScoreLenient   = 0.45
	baseScoreStrict    = 0.30
	overboughtRSI      = 70.0
	timeExitAfterDays  = 30
	catastrophicFactor = 1.5
)

// Score converts a bar's indicator state into a confidence value in
// [0, 0.95]. prev may be nil when no earlier bar exists; indicator
// fields that are nil simply contribute nothing. Deterministic: equal
// inputs always produce equal output.
func Score(cur core.Bar, prev *core.Bar, p Params) float64 {
	score := baseScoreLenient
	if p.StrictScoring {
		score = baseScoreStrict
	}

	score += rsiContribution(cur, prev, p)
	score += macdContribution(cur, prev)
	score += volumeContribution(cur, p)
	score += maContribution(cur)
	score += momentumContribution(cur, p)

	if score < 0 {
		return 0
	}
	if score > maxConfidence {
		return maxConfidence
	}
	return score
}

// rsiContribution rewards oversold depth and day-over-day recovery.
// Strict scoring uses tighter bands and penalizes an RSI that is not
// actually oversold.
func rsiContribution(cur core.Bar, prev *core.Bar, p Params) float64 {
	if cur.RSI == nil {
		return 0
	}
	rsi := *cur.RSI

	var c float64
	if p.StrictScoring {
		switch {
		case rsi < p.RSIOversold-10:
			c += 0.20
		case rsi < p.RSIOversold-5:
			c += 0.15
		case rsi < p.RSIOversold:
			c += 0.10
		default:
			c -= 0.10
		}
	} else {
		switch {
		case rsi < p.RSIOversold-5:
			c += 0.15
		case rsi < p.RSIOversold:
			c += 0.10
		case rsi < p.RSIOversold+5:
			c += 0.05
		}
	}

	if prev != nil && prev.RSI != nil {
		switch delta := rsi - *prev.RSI; {
		case delta > 5:
			c += 0.10
		case delta > 2:
			c += 0.06
		case delta > 0:
			c += 0.03
		}
	}
	return c
}

// macdContribution scores a newly formed golden cross highest, an
// established bullish stance modestly, and a bearish stance negatively.
func macdContribution(cur core.Bar, prev *core.Bar) float64 {
	if cur.MACD == nil || cur.MACDSignal == nil {
		return 0
	}

	bullish := *cur.MACD > *cur.MACDSignal
	newCross := bullish &&
		prev != nil && prev.MACD != nil && prev.MACDSignal != nil &&
		*prev.MACD <= *prev.MACDSignal

	switch {
	case newCross && cur.MACDHistogram != nil && *cur.MACDHistogram > 0:
		return 0.15
	case newCross:
		return 0.10
	case bullish:
		return 0.05
	default:
		return -0.05
	}
}

// volumeContribution rewards volume in multiples of the configured
// threshold and penalizes insufficient participation.
func volumeContribution(cur core.Bar, p Params) float64 {
	if cur.VolumeRatio == nil {
		return 0
	}
	vr := *cur.VolumeRatio
	switch {
	case vr >= 2*p.VolumeThreshold:
		return 0.12
	case vr >= 1.5*p.VolumeThreshold:
		return 0.08
	case vr >= p.VolumeThreshold:
		return 0.04
	default:
		return -0.06
	}
}

// maContribution scores moving-average alignment: a full bullish stack
// highest, partial alignment less, misalignment negatively.
func maContribution(cur core.Bar) float64 {
	if cur.MA5 == nil || cur.MA20 == nil {
		return 0
	}
	c := cur.Close
	ma5, ma20 := *cur.MA5, *cur.MA20

	switch {
	case cur.MA60 != nil && c > ma5 && ma5 > ma20 && ma20 > *cur.MA60:
		return 0.12
	case c > ma5 && ma5 > ma20:
		return 0.08
	case c > ma5:
		return 0.04
	case c < ma5 && c < ma20:
		return -0.06
	default:
		return 0
	}
}

func momentumContribution(cur core.Bar, p Params) float64 {
	if !p.EnablePriceMomentum || cur.PriceMomentum == nil {
		return 0
	}
	m := *cur.PriceMomentum
	switch {
	case m > p.PriceMomentumThreshold:
		return 0.08
	case m < -p.PriceMomentumThreshold:
		return -0.08
	default:
		return 0
	}
}
