// Package collector defines the data-provider contract the backtest
// engine consumes, plus an in-memory implementation for tests and
// offline runs.
package collector

import (
	"context"
	"sort"
	"time"

	"github.com/strataquant/strata/internal/core"
)

// BarProvider supplies daily OHLCV bars for the simulation engine.
type BarProvider interface {
	// FetchBars returns bars for one symbol, sorted ascending by date,
	// with validated numeric OHLCV fields. Rows the source could not
	// parse are silently dropped, not errors.
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)

	// Universe returns the symbols this provider can serve.
	Universe(ctx context.Context) ([]string, error)
}

// Static is a BarProvider backed by a fixed in-memory dataset.
type Static struct {
	bars map[string][]core.Bar
}

// NewStatic creates a Static provider from per-symbol bar series. Each
// series must already be sorted ascending by date.
func NewStatic(bars map[string][]core.Bar) *Static {
	return &Static{bars: bars}
}

// FetchBars returns the stored bars for symbol within [start, end].
func (s *Static) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	series, ok := s.bars[symbol]
	if !ok {
		return nil, core.WrapError(core.ErrSymbolNotFound, nil)
	}

	out := make([]core.Bar, 0, len(series))
	for _, b := range series {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		if !b.IsValid() {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Universe returns the stored symbols in sorted order.
func (s *Static) Universe(ctx context.Context) ([]string, error) {
	symbols := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}
