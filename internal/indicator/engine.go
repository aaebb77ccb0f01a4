// Package indicator derives technical indicators from daily bar series.
//
// All series are computed in a single forward pass: each bar's derived
// fields depend only on that bar and earlier ones, so a precomputed
// series can be consumed left to right by a simulation without lookahead.
package indicator

import (
	"math"

	"github.com/strataquant/strata/internal/core"
)

// Config selects indicator periods and which optional series to compute.
type Config struct {
	RSIPeriod      int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int
	ATRPeriod      int
	MomentumPeriod int

	WithMA60     bool
	WithATR      bool
	WithMomentum bool
}

// DefaultConfig returns the standard daily-bar configuration.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		ATRPeriod:      14,
		MomentumPeriod: 20,
		WithMA60:       true,
		WithATR:        true,
		WithMomentum:   true,
	}
}

// Compute populates the derived fields of bars in place. The slice must
// be ordered ascending by date. Fields stay nil until their warm-up
// window is complete.
func Compute(bars []core.Bar, cfg Config) {
	if len(bars) == 0 {
		return
	}

	computeRSI(bars, cfg.RSIPeriod)
	computeMACD(bars, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	computeMA(bars, 5, func(b *core.Bar, v float64) { b.MA5 = core.Float(v) })
	computeMA(bars, 20, func(b *core.Bar, v float64) { b.MA20 = core.Float(v) })
	if cfg.WithMA60 {
		computeMA(bars, 60, func(b *core.Bar, v float64) { b.MA60 = core.Float(v) })
	}

	computeVolumeRatio(bars, 20)

	if cfg.WithATR {
		computeATR(bars, cfg.ATRPeriod)
	}
	if cfg.WithMomentum {
		computeMomentum(bars, cfg.MomentumPeriod)
	}
}

// computeRSI applies the Wilder recurrence: the seed at index == period
// is the simple mean of the first `period` day-over-day gains/losses,
// after which avg = avg_prev*(1-1/period) + new/period.
func computeRSI(bars []core.Bar, period int) {
	if period <= 0 || len(bars) <= period {
		return
	}

	var sumGain, sumLoss float64
	var avgGain, avgLoss float64

	for i := 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		var gain, loss float64
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		switch {
		case i < period:
			sumGain += gain
			sumLoss += loss
			continue
		case i == period:
			avgGain = (sumGain + gain) / float64(period)
			avgLoss = (sumLoss + loss) / float64(period)
		default:
			avgGain = avgGain*(1-1/float64(period)) + gain/float64(period)
			avgLoss = avgLoss*(1-1/float64(period)) + loss/float64(period)
		}

		bars[i].AvgGain = core.Float(avgGain)
		bars[i].AvgLoss = core.Float(avgLoss)

		var rsi float64
		if avgLoss == 0 {
			rsi = 100
		} else {
			rsi = 100 - 100/(1+avgGain/avgLoss)
		}

		// A degenerate value falls back to the previous bar's RSI, or
		// to neutral 50 when there is none.
		if math.IsNaN(rsi) || rsi < 0 || rsi > 100 {
			if prev := bars[i-1].RSI; prev != nil {
				rsi = *prev
			} else {
				rsi = 50
			}
		}
		bars[i].RSI = core.Float(rsi)
	}
}

// computeMACD maintains the EMA12/EMA26 chain seeded at the first close.
// The signal line is the EMA of MACD itself, seeded at the first valid
// MACD value.
func computeMACD(bars []core.Bar, fast, slow, signalPeriod int) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 {
		return
	}

	kFast := 2 / float64(fast+1)
	kSlow := 2 / float64(slow+1)
	kSignal := 2 / float64(signalPeriod+1)

	emaFast := bars[0].Close
	emaSlow := bars[0].Close
	var signal float64
	signalSeeded := false

	for i := range bars {
		if i > 0 {
			emaFast = (bars[i].Close-emaFast)*kFast + emaFast
			emaSlow = (bars[i].Close-emaSlow)*kSlow + emaSlow
		}
		bars[i].EMA12 = core.Float(emaFast)
		bars[i].EMA26 = core.Float(emaSlow)

		if i < slow-1 {
			continue
		}

		macd := emaFast - emaSlow
		if !signalSeeded {
			signal = macd
			signalSeeded = true
		} else {
			signal = (macd-signal)*kSignal + signal
		}

		bars[i].MACD = core.Float(macd)
		bars[i].MACDSignal = core.Float(signal)
		bars[i].MACDHistogram = core.Float(macd - signal)
	}
}

// computeMA sets a simple rolling mean of closes once the window fills.
func computeMA(bars []core.Bar, window int, set func(*core.Bar, float64)) {
	if window <= 0 || len(bars) < window {
		return
	}

	var sum float64
	for i := range bars {
		sum += bars[i].Close
		if i >= window {
			sum -= bars[i-window].Close
		}
		if i >= window-1 {
			set(&bars[i], sum/float64(window))
		}
	}
}

// computeVolumeRatio sets volume / rolling mean volume over the window.
func computeVolumeRatio(bars []core.Bar, window int) {
	if window <= 0 || len(bars) < window {
		return
	}

	var sum float64
	for i := range bars {
		sum += bars[i].Volume
		if i >= window {
			sum -= bars[i-window].Volume
		}
		if i < window-1 {
			continue
		}
		mean := sum / float64(window)
		bars[i].VolumeMA20 = core.Float(mean)
		if mean > 0 {
			bars[i].VolumeRatio = core.Float(bars[i].Volume / mean)
		}
	}
}

// computeATR sets the rolling mean of true range. The window starts at
// index == period so it only covers true ranges that had a previous
// close available.
func computeATR(bars []core.Bar, period int) {
	if period <= 0 || len(bars) <= period {
		return
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i < len(bars); i++ {
		sum += tr[i]
		if i > period {
			sum -= tr[i-period]
		}
		if i >= period {
			bars[i].ATR = core.Float(sum / float64(period))
		}
	}
}

// computeMomentum sets (close - close[i-period]) / close[i-period].
func computeMomentum(bars []core.Bar, period int) {
	if period <= 0 {
		return
	}

	for i := period; i < len(bars); i++ {
		base := bars[i-period].Close
		if base == 0 {
			continue
		}
		bars[i].PriceMomentum = core.Float((bars[i].Close - base) / base)
	}
}
