package backtest

import (
	"math"
	"time"

	"github.com/strataquant/strata/internal/core"
)

// profitFactorLossless stands in for an undefined gains/losses ratio
// when a run closed winners but no losers.
const profitFactorLossless = 999.0

// computeStats aggregates the closed (sell) trades of a ledger.
func computeStats(trades []Trade) TradeStats {
	var stats TradeStats
	var sumWin, sumLoss, sumHolding float64

	for _, t := range trades {
		if t.Action != core.ActionSell {
			continue
		}
		stats.TotalTrades++
		sumHolding += float64(t.HoldingDays)

		if t.Profit > 0 {
			stats.WinningTrades++
			sumWin += t.ProfitRate
			if t.ProfitRate > stats.MaxWin {
				stats.MaxWin = t.ProfitRate
			}
		} else {
			stats.LosingTrades++
			sumLoss += t.ProfitRate
			if t.ProfitRate < stats.MaxLoss {
				stats.MaxLoss = t.ProfitRate
			}
		}
	}

	if stats.TotalTrades == 0 {
		return stats
	}

	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	stats.AvgHoldingDays = sumHolding / float64(stats.TotalTrades)
	if stats.WinningTrades > 0 {
		stats.AvgWin = sumWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = sumLoss / float64(stats.LosingTrades)
	}
	stats.ProfitFactor = profitFactor(trades)
	return stats
}

// profitFactor is gross gains over gross losses on closed trades. A
// lossless run with gains maps to the sentinel; a run with neither
// gains nor losses maps to zero. Never negative, never NaN/Inf.
func profitFactor(trades []Trade) float64 {
	var gains, losses float64
	for _, t := range trades {
		if t.Action != core.ActionSell {
			continue
		}
		if t.Profit > 0 {
			gains += t.Profit
		} else {
			losses += -t.Profit
		}
	}

	if losses == 0 {
		if gains > 0 {
			return profitFactorLossless
		}
		return 0
	}
	return gains / losses
}

// maxDrawdown finds the largest peak-to-trough decline of the equity
// curve, as a fraction of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	var maxDD, peak float64
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// annualizedReturn compounds the total return over the simulated span:
// (final/initial)^(365.25/days) - 1. Returns 0 for spans shorter than a
// day or a non-positive starting capital.
func annualizedReturn(initial, final float64, start, end time.Time) float64 {
	if initial <= 0 || final <= 0 {
		return 0
	}
	days := end.Sub(start).Hours() / 24
	if days < 1 {
		return 0
	}
	return math.Pow(final/initial, 365.25/days) - 1
}

// symbolPerformance breaks closed trades down per symbol, in the given
// symbol order so the output is deterministic.
func symbolPerformance(trades []Trade, symbols []string) []SymbolPerformance {
	bySymbol := make(map[string]*SymbolPerformance, len(symbols))
	out := make([]SymbolPerformance, 0, len(symbols))

	for _, t := range trades {
		if t.Action != core.ActionSell {
			continue
		}
		perf, ok := bySymbol[t.Symbol]
		if !ok {
			perf = &SymbolPerformance{Symbol: t.Symbol}
			bySymbol[t.Symbol] = perf
		}
		perf.Trades++
		perf.Profit += t.Profit
		if t.Profit > 0 {
			perf.Wins++
		}
	}

	for _, sym := range symbols {
		perf, ok := bySymbol[sym]
		if !ok {
			continue
		}
		if perf.Trades > 0 {
			perf.WinRate = float64(perf.Wins) / float64(perf.Trades)
		}
		out = append(out, *perf)
	}
	return out
}
