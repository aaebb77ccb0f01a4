package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/strataquant/strata/internal/collector"
	"github.com/strataquant/strata/internal/core"
	"github.com/strataquant/strata/internal/indicator"
	"github.com/strataquant/strata/internal/metrics"
	"github.com/strataquant/strata/internal/strategy"
)

// Fill constants of the simulated venue.
const (
	// sellFillHaircut folds commission and transaction tax into the
	// sell notional.
	sellFillHaircut = 0.995575
	// buyFeeMarkup folds commission into the effective buy fill price.
	buyFeeMarkup = 1.001425
	// Orders sized below this notional are dropped without retry.
	minOrderNotional = 10_000.0
	// ATR stop distance at entry, in multiples of entry-day ATR.
	atrStopMultiplier = 2.0
)

// Engine runs strategy simulations against a bar provider.
type Engine struct {
	provider collector.BarProvider
	log      *zap.Logger
	metrics  *metrics.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics wires a metrics registry. The engine reports bars
// processed and trades executed per run.
func WithMetrics(reg *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = reg }
}

// New creates an Engine. log may be nil.
func New(provider collector.BarProvider, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{provider: provider, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one simulation and returns its full result.
//
// The run is deterministic: trading days are processed in ascending
// order, and within a day symbols are processed in the order they
// appear in req.Symbols. That order decides which symbols are sized
// first when cash is scarce.
//
// Symbols whose data fetch fails are skipped and reported in
// Result.Skipped; the run fails only when no symbol yields usable data.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	series, order, skipped := e.fetchAll(ctx, req)
	if len(order) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no usable data for any of %d symbols", len(req.Symbols)))
	}

	// Indicator precomputation is embarrassingly parallel: each
	// symbol's series is independently owned.
	cfg := indicatorConfig(req.Params)
	var wg sync.WaitGroup
	for _, sym := range order {
		wg.Add(1)
		go func(bars []core.Bar) {
			defer wg.Done()
			indicator.Compute(bars, cfg)
		}(series[sym])
	}
	wg.Wait()

	sim := newSimulation(req, series, order, e.log)
	for _, day := range sim.dates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		sim.step(day)
	}
	sim.finish()

	if e.metrics != nil {
		e.metrics.AddBarsProcessed(sim.barsProcessed)
		e.metrics.AddTradesExecuted(len(sim.trades))
	}
	return sim.result(skipped), nil
}

// fetchAll retrieves bars for every requested symbol, preserving request
// order and collecting per-symbol failures.
func (e *Engine) fetchAll(ctx context.Context, req Request) (map[string][]core.Bar, []string, []SkippedSymbol) {
	series := make(map[string][]core.Bar, len(req.Symbols))
	order := make([]string, 0, len(req.Symbols))
	var skipped []SkippedSymbol

	for _, sym := range req.Symbols {
		if _, dup := series[sym]; dup {
			continue
		}
		bars, err := e.provider.FetchBars(ctx, sym, req.Start, req.End)
		if err != nil {
			e.log.Warn("symbol fetch failed, excluded from run",
				zap.String("symbol", sym), zap.Error(err))
			skipped = append(skipped, SkippedSymbol{Symbol: sym, Reason: err.Error()})
			continue
		}
		if len(bars) == 0 {
			skipped = append(skipped, SkippedSymbol{Symbol: sym, Reason: "no bars in range"})
			continue
		}
		series[sym] = bars
		order = append(order, sym)
	}
	return series, order, skipped
}

func indicatorConfig(p strategy.Params) indicator.Config {
	return indicator.Config{
		RSIPeriod:      p.RSIPeriod,
		MACDFast:       p.MACDFast,
		MACDSlow:       p.MACDSlow,
		MACDSignal:     p.MACDSignal,
		ATRPeriod:      p.ATRPeriod,
		MomentumPeriod: p.PriceMomentumPeriod,
		WithMA60:       p.EnableMA60,
		WithATR:        p.EnableATRStop,
		WithMomentum:   p.EnablePriceMomentum,
	}
}

// simulation is the mutable state of one run. Per-symbol state
// (position, pending orders) is independent across symbols; the only
// shared state is cash and the exposure derived from it.
type simulation struct {
	params  strategy.Params
	log     *zap.Logger
	symbols []string
	series  map[string][]core.Bar
	index   map[string]map[time.Time]int

	dates     []time.Time
	dateIndex map[time.Time]int

	cash         float64
	positions    map[string]*Position
	pendingBuys  map[string]*pendingBuy
	pendingSells map[string]*pendingSell
	lastClose    map[string]float64

	trades        []Trade
	equity        []EquityPoint
	barsProcessed int

	initialCapital float64
	start, end     time.Time
}

func newSimulation(req Request, series map[string][]core.Bar, order []string, log *zap.Logger) *simulation {
	s := &simulation{
		params:         req.Params,
		log:            log,
		symbols:        order,
		series:         series,
		index:          make(map[string]map[time.Time]int, len(order)),
		positions:      make(map[string]*Position),
		pendingBuys:    make(map[string]*pendingBuy),
		pendingSells:   make(map[string]*pendingSell),
		lastClose:      make(map[string]float64),
		cash:           req.InitialCapital,
		initialCapital: req.InitialCapital,
		start:          req.Start,
		end:            req.End,
	}

	// The calendar is the sorted union of all symbols' bar days: a date
	// is a trading day when at least one symbol has data on it.
	daySet := make(map[time.Time]struct{})
	for _, sym := range order {
		byDay := make(map[time.Time]int, len(series[sym]))
		for i, b := range series[sym] {
			d := b.Day()
			byDay[d] = i
			daySet[d] = struct{}{}
		}
		s.index[sym] = byDay
	}

	s.dates = make([]time.Time, 0, len(daySet))
	for d := range daySet {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })

	s.dateIndex = make(map[time.Time]int, len(s.dates))
	for i, d := range s.dates {
		s.dateIndex[d] = i
	}
	return s
}

// step processes one trading day: fills due orders, evaluates exit and
// entry signals, then marks the portfolio to market.
func (s *simulation) step(day time.Time) {
	for _, sym := range s.symbols {
		idx, ok := s.index[sym][day]
		if !ok {
			continue
		}
		bars := s.series[sym]
		bar := bars[idx]
		s.barsProcessed++
		s.lastClose[sym] = bar.Close

		// Fills happen "on or after" the target date so a target that
		// lands on a non-trading day is tolerated.
		if ps := s.pendingSells[sym]; ps != nil && due(ps.ExecuteOn, day) {
			s.executeSell(ps, bar, day)
		}
		if pb := s.pendingBuys[sym]; pb != nil && due(pb.ExecuteOn, day) {
			s.executeBuy(pb, bar, day)
		}

		// Signal evaluation waits for fully warmed indicators.
		if bar.RSI == nil || bar.MACD == nil || bar.MACDSignal == nil {
			continue
		}
		var prev *core.Bar
		if idx > 0 {
			prev = &bars[idx-1]
		}

		if pos := s.positions[sym]; pos != nil {
			if s.pendingSells[sym] != nil {
				continue
			}
			holding := daysBetween(pos.EntryDate, day)
			if exit, reason := strategy.EvaluateExit(bar, &pos.State, holding, s.params); exit {
				s.pendingSells[sym] = &pendingSell{
					Symbol:     sym,
					SignalDate: day,
					ExecuteOn:  s.nextTradingDay(day),
					Reason:     reason,
					Snapshot:   *pos,
				}
			}
		} else if s.pendingBuys[sym] == nil {
			if sig := strategy.EvaluateEntry(bar, prev, s.params); sig.Buy {
				s.pendingBuys[sym] = &pendingBuy{
					Symbol:     sym,
					SignalDate: day,
					ExecuteOn:  s.nextTradingDay(day),
					Confidence: sig.Confidence,
					Reason:     sig.Reason,
				}
			}
		}
	}

	// Mark to market. Positions in symbols without a bar today are
	// valued at their last known close.
	var posValue float64
	for _, sym := range s.symbols {
		if pos := s.positions[sym]; pos != nil {
			posValue += float64(pos.Quantity) * s.lastClose[sym]
		}
	}
	s.equity = append(s.equity, EquityPoint{
		Date:      day,
		Value:     s.cash + posValue,
		Cash:      s.cash,
		Positions: posValue,
	})
}

// executeSell fills a pending sell at the day's open price. The ledger
// entry is built from the snapshot taken at signal time.
func (s *simulation) executeSell(ps *pendingSell, bar core.Bar, day time.Time) {
	snap := ps.Snapshot
	proceeds := bar.Open * float64(snap.Quantity) * sellFillHaircut
	profit := proceeds - snap.InvestAmount
	profitRate := profit / snap.InvestAmount

	s.trades = append(s.trades, Trade{
		Symbol:         ps.Symbol,
		Action:         core.ActionSell,
		Date:           day,
		Price:          bar.Open,
		Quantity:       snap.Quantity,
		Amount:         proceeds,
		Profit:         profit,
		ProfitRate:     profitRate,
		HoldingDays:    daysBetween(snap.EntryDate, day),
		Confidence:     snap.Confidence,
		Reason:         ps.Reason,
		BuySignalDate:  snap.SignalDate,
		BuyDate:        snap.EntryDate,
		SellSignalDate: ps.SignalDate,
		SellDate:       day,
	})
	s.cash += proceeds
	delete(s.positions, ps.Symbol)
	delete(s.pendingSells, ps.Symbol)
}

// executeBuy sizes and fills a pending buy at the day's open price. An
// order whose sized notional falls below the minimum is dropped without
// retry; that is not an error.
func (s *simulation) executeBuy(pb *pendingBuy, bar core.Bar, day time.Time) {
	delete(s.pendingBuys, pb.Symbol)

	exposure := strategy.Exposure(s.exposureValue(day), s.cash)
	fraction := strategy.PositionFraction(pb.Confidence, exposure, s.params)

	invest := s.cash * fraction
	if ceil := s.cash * s.params.MaxPositionSize; invest > ceil {
		invest = ceil
	}
	if invest < minOrderNotional {
		s.log.Debug("buy order below minimum notional, dropped",
			zap.String("symbol", pb.Symbol), zap.Float64("notional", invest))
		return
	}

	fillPrice := bar.Open * buyFeeMarkup
	qty := int64(invest / fillPrice)
	if qty <= 0 {
		return
	}
	cost := float64(qty) * fillPrice

	pos := &Position{
		Symbol:       pb.Symbol,
		SignalDate:   pb.SignalDate,
		EntryDate:    day,
		EntryPrice:   bar.Open,
		Quantity:     qty,
		InvestAmount: cost,
		Confidence:   pb.Confidence,
		State: strategy.PositionState{
			EntryPrice:     bar.Open,
			HighSinceEntry: bar.Open,
			TrailingStop:   bar.Open * (1 - s.params.TrailingStopPercent),
		},
	}
	if bar.ATR != nil {
		pos.EntryATR = bar.ATR
		stop := bar.Open - atrStopMultiplier*(*bar.ATR)
		pos.State.ATRStop = &stop
	}
	s.positions[pb.Symbol] = pos

	s.trades = append(s.trades, Trade{
		Symbol:        pb.Symbol,
		Action:        core.ActionBuy,
		Date:          day,
		Price:         bar.Open,
		Quantity:      qty,
		Amount:        cost,
		Confidence:    pb.Confidence,
		Reason:        pb.Reason,
		BuySignalDate: pb.SignalDate,
		BuyDate:       day,
	})
	s.cash -= cost
}

// exposureValue sums today's close times quantity across open positions.
// Positions without a quote today contribute zero.
func (s *simulation) exposureValue(day time.Time) float64 {
	var v float64
	for _, sym := range s.symbols {
		pos := s.positions[sym]
		if pos == nil {
			continue
		}
		idx, ok := s.index[sym][day]
		if !ok {
			continue
		}
		v += float64(pos.Quantity) * s.series[sym][idx].Close
	}
	return v
}

// finish logs orders the run ended on before they could mature. They
// are excluded from the ledger.
func (s *simulation) finish() {
	for _, sym := range s.symbols {
		if pb := s.pendingBuys[sym]; pb != nil {
			s.log.Info("buy order never executed, run ended",
				zap.String("symbol", sym), zap.Time("signal_date", pb.SignalDate))
		}
		if ps := s.pendingSells[sym]; ps != nil {
			s.log.Info("sell order never executed, run ended",
				zap.String("symbol", sym), zap.Time("signal_date", ps.SignalDate))
		}
	}
}

// result assembles the final Result from the accumulated state.
func (s *simulation) result(skipped []SkippedSymbol) *Result {
	final := s.initialCapital
	var first, last time.Time
	if len(s.equity) > 0 {
		final = s.equity[len(s.equity)-1].Value
		first = s.equity[0].Date
		last = s.equity[len(s.equity)-1].Date
	}

	var totalReturn float64
	if s.initialCapital > 0 {
		totalReturn = final/s.initialCapital - 1
	}

	return &Result{
		StartDate:      s.start,
		EndDate:        s.end,
		InitialCapital: s.initialCapital,
		FinalCapital:   final,
		TotalProfit:    final - s.initialCapital,
		TotalReturn:    totalReturn,
		AnnualReturn:   annualizedReturn(s.initialCapital, final, first, last),
		MaxDrawdown:    maxDrawdown(s.equity),
		Stats:          computeStats(s.trades),
		Trades:         s.trades,
		EquityCurve:    s.equity,
		Symbols:        symbolPerformance(s.trades, s.symbols),
		Skipped:        skipped,
	}
}

// nextTradingDay returns the first date in the calendar strictly after
// day, or the zero time when the run ends first.
func (s *simulation) nextTradingDay(day time.Time) time.Time {
	i, ok := s.dateIndex[day]
	if !ok || i+1 >= len(s.dates) {
		return time.Time{}
	}
	return s.dates[i+1]
}

func due(target, day time.Time) bool {
	return !target.IsZero() && !target.After(day)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
