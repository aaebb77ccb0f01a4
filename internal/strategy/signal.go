package strategy

import (
	"fmt"

	"github.com/strataquant/strata/internal/core"
)

// EntrySignal is the outcome of an entry evaluation.
type EntrySignal struct {
	Buy        bool
	Confidence float64
	Reason     string
}

// PositionState carries the mutable per-position fields the exit
// evaluator reads and updates while a position is held.
type PositionState struct {
	EntryPrice     float64
	HighSinceEntry float64 // monotonically non-decreasing
	TrailingStop   float64
	TrailingActive bool     // activation threshold crossed at least once
	ATRStop        *float64 // fixed at entry, nil when ATR unavailable
}

// EvaluateEntry runs the gated entry check for one bar. Every gate must
// pass before the confidence score is computed and compared against the
// configured threshold. The gates short-circuit in a fixed order so the
// returned reason names the first failing condition.
func EvaluateEntry(cur core.Bar, prev *core.Bar, p Params) EntrySignal {
	if cur.RSI == nil || cur.MACD == nil || cur.MACDSignal == nil {
		return EntrySignal{Reason: "insufficient data: indicators not warmed up"}
	}
	rsi := *cur.RSI

	if rsi >= p.RSIOversold {
		return EntrySignal{Reason: fmt.Sprintf("RSI %.1f not oversold (< %.1f required)", rsi, p.RSIOversold)}
	}
	if *cur.MACD <= *cur.MACDSignal {
		return EntrySignal{Reason: "MACD not above signal line"}
	}
	if prev == nil || prev.RSI == nil || rsi <= *prev.RSI {
		return EntrySignal{Reason: "RSI not improving versus previous bar"}
	}
	if cur.VolumeRatio == nil || *cur.VolumeRatio < p.VolumeThreshold {
		return EntrySignal{Reason: fmt.Sprintf("volume ratio below threshold %.2f", p.VolumeThreshold)}
	}
	if cur.Close <= cur.Open {
		return EntrySignal{Reason: "bearish candle (close <= open)"}
	}
	if p.StrictScoring && p.HierarchicalEntry &&
		p.EnablePriceMomentum && cur.PriceMomentum != nil && *cur.PriceMomentum < 0 {
		return EntrySignal{Reason: fmt.Sprintf("negative momentum %.2f%%", *cur.PriceMomentum*100)}
	}

	confidence := Score(cur, prev, p)
	if confidence < p.ConfidenceThreshold {
		return EntrySignal{
			Confidence: confidence,
			Reason:     fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, p.ConfidenceThreshold),
		}
	}

	return EntrySignal{
		Buy:        true,
		Confidence: confidence,
		Reason: fmt.Sprintf("oversold rebound: RSI %.1f rising, MACD bullish, volume %.1fx, confidence %.2f",
			rsi, *cur.VolumeRatio, confidence),
	}
}

// EvaluateExit runs the exit checks for an open position against the
// current bar, in priority order: trailing stop, ATR stop,
// minimum-holding protection (with the catastrophic-loss override),
// take profit, stop loss, RSI overbought, MACD dead cross, and the
// time-based exit. It mutates pos: the running high is updated every
// call and the trailing stop is re-anchored once active.
//
// Returns false with an empty reason when the position should be held.
func EvaluateExit(bar core.Bar, pos *PositionState, holdingDays int, p Params) (bool, string) {
	if bar.Close > pos.HighSinceEntry {
		pos.HighSinceEntry = bar.Close
	}
	profitRate := (bar.Close - pos.EntryPrice) / pos.EntryPrice

	if p.EnableTrailingStop {
		runUp := (pos.HighSinceEntry - pos.EntryPrice) / pos.EntryPrice
		if runUp >= p.TrailingActivatePercent {
			pos.TrailingActive = true
		}
		if pos.TrailingActive {
			pos.TrailingStop = pos.HighSinceEntry * (1 - p.TrailingStopPercent)
			if bar.Close <= pos.TrailingStop {
				return true, fmt.Sprintf("trailing stop %.2f hit (peak %.2f)", pos.TrailingStop, pos.HighSinceEntry)
			}
		}
	}

	if p.EnableATRStop && pos.ATRStop != nil && bar.Close <= *pos.ATRStop {
		return true, fmt.Sprintf("ATR stop %.2f hit", *pos.ATRStop)
	}

	// Inside the protection window only a catastrophic loss may exit.
	if holdingDays <= p.MinHoldingDays {
		if profitRate <= -catastrophicFactor*p.StopLoss {
			return true, fmt.Sprintf("catastrophic loss %.1f%% overrides holding protection", profitRate*100)
		}
		return false, ""
	}

	if profitRate >= p.StopProfit {
		return true, fmt.Sprintf("take profit %.1f%%", profitRate*100)
	}
	if profitRate <= -p.StopLoss {
		return true, fmt.Sprintf("stop loss %.1f%%", profitRate*100)
	}
	if bar.RSI != nil && *bar.RSI > overboughtRSI {
		return true, fmt.Sprintf("RSI overbought %.1f", *bar.RSI)
	}
	if bar.MACD != nil && bar.MACDSignal != nil && bar.MACDHistogram != nil &&
		*bar.MACD < *bar.MACDSignal && *bar.MACDHistogram < 0 {
		return true, "MACD dead cross with negative histogram"
	}
	if holdingDays > timeExitAfterDays {
		return true, fmt.Sprintf("held %d days, time-based exit", holdingDays)
	}

	return false, ""
}
