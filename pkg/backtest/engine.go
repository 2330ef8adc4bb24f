package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evoquant/evotrader/pkg/indicators"
	"github.com/evoquant/evotrader/pkg/market"
	"github.com/evoquant/evotrader/pkg/signal"
)

const (
	// signalWarmup is the minimum history a symbol needs before it trades.
	signalWarmup = 50

	// maxOpenPositions caps concurrent positions across the portfolio.
	maxOpenPositions = 10

	// maxSinglePositionPct caps any single position at half of equity
	// regardless of the configured position size.
	maxSinglePositionPct = 0.5

	// trailingActivationGain is the unrealized gain that arms the
	// trailing stop.
	trailingActivationGain = 0.02
)

// Engine simulates a multi-symbol portfolio over daily bars. One engine runs
// one configuration over one data set; engines share no mutable state, so
// evaluations may run concurrently.
type Engine struct {
	cfg    Config
	data   map[string][]market.Bar
	logger zerolog.Logger

	// simulation state
	cash           float64
	positions      map[string]*Position
	trades         []Trade
	equityCurve    []EquityPoint
	peakEquity     float64
	maxDrawdownPct float64

	statTotals [5]float64
	regimes    map[signal.Regime]int
	samples    int
}

// NewEngine creates an engine over the given bar data. Bars must be sorted
// ascending by date with no duplicate dates per symbol.
func NewEngine(cfg Config, data map[string][]market.Bar) *Engine {
	return &Engine{
		cfg:        cfg,
		data:       data,
		logger:     log.With().Str("component", "backtest").Logger(),
		cash:       cfg.InitialCapital,
		positions:  make(map[string]*Position),
		peakEquity: cfg.InitialCapital,
		regimes:    make(map[signal.Regime]int),
	}
}

// Run executes the simulation and returns its result. The context is checked
// once per simulated date.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if len(e.data) == 0 {
		return nil, fmt.Errorf("no bar data loaded")
	}

	symbols := make([]string, 0, len(e.data))
	for sym := range e.data {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	sets := make(map[string]*indicators.Set, len(symbols))
	index := make(map[string]map[time.Time]int, len(symbols))
	for _, sym := range symbols {
		bars := e.data[sym]
		sets[sym] = indicators.Compute(bars, e.cfg.Indicators)

		byDate := make(map[time.Time]int, len(bars))
		for i, b := range bars {
			byDate[b.Date()] = i
		}
		index[sym] = byDate
	}

	dates := e.collectDates(symbols)
	if len(dates) == 0 {
		return nil, fmt.Errorf("bar data contains no dates")
	}

	e.logger.Debug().
		Int("symbols", len(symbols)).
		Int("dates", len(dates)).
		Float64("initial_capital", e.cfg.InitialCapital).
		Msg("Starting simulation")

	equity := e.cfg.InitialCapital

	for _, date := range dates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dayStartEquity := equity
		dayRealized := 0.0

		for _, sym := range symbols {
			idx, ok := index[sym][date]
			if !ok || idx < signalWarmup {
				continue
			}

			bars := e.data[sym]
			comps := signal.At(idx, bars, sets[sym], e.cfg.Weights)
			e.recordSignal(comps)

			bar := bars[idx]
			atr := sets[sym].ATR[idx]

			if pos, open := e.positions[sym]; open {
				dayRealized += e.managePosition(pos, bar, date, comps, atr)
			} else {
				e.tryEnter(sym, bar, date, comps, atr, equity)
			}
		}

		// Portfolio-level daily loss limit: a bad enough day flattens
		// everything at that date's close.
		if dayRealized < -dayStartEquity*e.cfg.MaxDailyLoss {
			e.liquidateAll(date, index, ExitDailyLossLimit)
		}

		unrealized := e.markToMarket(date, index)
		equity = e.cash + unrealized
		e.recordEquity(date, equity)
	}

	// Close whatever is still open at the last available close.
	e.liquidateAll(dates[len(dates)-1], index, ExitEndOfBacktest)
	finalEquity := e.cash

	result := &Result{
		Config:      e.cfg,
		Trades:      e.trades,
		EquityCurve: e.equityCurve,
		SignalStats: e.signalStats(),
	}
	result.Metrics = CalculateMetrics(e.trades, e.cfg.InitialCapital, finalEquity, e.maxDrawdownPct, e.equityCurve)

	e.logger.Debug().
		Int("trades", len(e.trades)).
		Float64("final_equity", finalEquity).
		Float64("max_drawdown_pct", e.maxDrawdownPct).
		Msg("Simulation complete")

	return result, nil
}

// collectDates returns the sorted union of bar dates across all symbols.
func (e *Engine) collectDates(symbols []string) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, sym := range symbols {
		for _, b := range e.data[sym] {
			seen[b.Date()] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// managePosition applies the exit rules for an open position, in priority
// order: stop-loss, take-profit, signal reversal. When none fires and the
// position carries a sufficient gain, the trailing stop ratchets upward.
// Returns the realized P&L for the day (0 if the position stays open).
func (e *Engine) managePosition(pos *Position, bar market.Bar, date time.Time, comps signal.Components, atr *float64) float64 {
	switch {
	case bar.Low <= pos.StopLoss:
		return e.closePosition(pos, pos.StopLoss, date, ExitStopLoss)

	case bar.High >= pos.TakeProfit:
		return e.closePosition(pos, pos.TakeProfit, date, ExitTakeProfit)

	case comps.Composite < -e.cfg.SellThreshold && comps.Confidence > e.cfg.ConfidenceMin:
		return e.closePosition(pos, bar.Close, date, ExitSignalReversal)
	}

	if e.cfg.TrailingStop && atr != nil {
		gain := (bar.Close - pos.EntryPrice) / pos.EntryPrice
		if gain > trailingActivationGain {
			// The stop only ever ratchets upward.
			if next := bar.Close - *atr*e.cfg.StopLossATR; next > pos.StopLoss {
				pos.StopLoss = next
			}
		}
	}

	return 0
}

// tryEnter opens a position when the composite signal and confidence clear
// their thresholds and risk limits permit.
func (e *Engine) tryEnter(sym string, bar market.Bar, date time.Time, comps signal.Components, atr *float64, equity float64) {
	if comps.Composite <= e.cfg.BuyThreshold || comps.Confidence <= e.cfg.ConfidenceMin {
		return
	}
	if len(e.positions) >= maxOpenPositions {
		return
	}
	if atr == nil {
		return
	}

	size := math.Min(equity*e.cfg.MaxPositionPct, equity*maxSinglePositionPct)
	shares := math.Floor(size / bar.Close)
	if shares <= 0 {
		return
	}

	exposure := shares * bar.Close
	for _, p := range e.positions {
		exposure += p.Shares * p.EntryPrice
	}
	if exposure > equity*e.cfg.MaxPortfolioExposure {
		return
	}

	e.positions[sym] = &Position{
		Symbol:     sym,
		EntryDate:  date,
		EntryPrice: bar.Close,
		Shares:     shares,
		Side:       "long",
		StopLoss:   bar.Close - *atr*e.cfg.StopLossATR,
		TakeProfit: bar.Close + *atr*e.cfg.TakeProfitATR,
		Entry:      comps,
	}
}

// closePosition realizes P&L into cash and appends the immutable trade
// record. Returns the realized P&L.
func (e *Engine) closePosition(pos *Position, exitPrice float64, date time.Time, reason ExitReason) float64 {
	pnl := (exitPrice - pos.EntryPrice) * pos.Shares
	e.cash += pnl

	e.trades = append(e.trades, Trade{
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		EntryDate:   pos.EntryDate,
		ExitDate:    date,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Shares:      pos.Shares,
		PnL:         pnl,
		Reason:      reason,
		HoldingDays: int(date.Sub(pos.EntryDate).Hours() / 24),
	})

	delete(e.positions, pos.Symbol)
	return pnl
}

// liquidateAll force-closes every open position at its last close on or
// before the given date.
func (e *Engine) liquidateAll(date time.Time, index map[string]map[time.Time]int, reason ExitReason) {
	syms := make([]string, 0, len(e.positions))
	for sym := range e.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	for _, sym := range syms {
		price, ok := e.lastCloseAt(sym, date, index)
		if !ok {
			price = e.positions[sym].EntryPrice
		}
		e.closePosition(e.positions[sym], price, date, reason)
	}
}

// lastCloseAt finds the close for sym at date, falling back to the most
// recent earlier bar when the symbol has no bar on that date.
func (e *Engine) lastCloseAt(sym string, date time.Time, index map[string]map[time.Time]int) (float64, bool) {
	if idx, ok := index[sym][date]; ok {
		return e.data[sym][idx].Close, true
	}
	bars := e.data[sym]
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Date().After(date) {
			return bars[i].Close, true
		}
	}
	return 0, false
}

// markToMarket sums the unrealized P&L of open positions using each symbol's
// close on the given date; symbols without a bar that date are skipped.
func (e *Engine) markToMarket(date time.Time, index map[string]map[time.Time]int) float64 {
	unrealized := 0.0
	for sym, pos := range e.positions {
		idx, ok := index[sym][date]
		if !ok {
			continue
		}
		unrealized += (e.data[sym][idx].Close - pos.EntryPrice) * pos.Shares
	}
	return unrealized
}

// recordEquity appends an equity point and updates peak and max drawdown.
func (e *Engine) recordEquity(date time.Time, equity float64) {
	e.equityCurve = append(e.equityCurve, EquityPoint{Date: date, Equity: equity})

	if equity > e.peakEquity {
		e.peakEquity = equity
	}
	if e.peakEquity > 0 {
		if dd := (e.peakEquity - equity) / e.peakEquity * 100; dd > e.maxDrawdownPct {
			e.maxDrawdownPct = dd
		}
	}
}

func (e *Engine) recordSignal(c signal.Components) {
	e.statTotals[0] += c.Technical
	e.statTotals[1] += c.Momentum
	e.statTotals[2] += c.Volatility
	e.statTotals[3] += c.Volume
	e.statTotals[4] += c.Sentiment
	e.regimes[c.Regime]++
	e.samples++
}

func (e *Engine) signalStats() SignalStats {
	stats := SignalStats{
		RegimeCounts: e.regimes,
		Samples:      e.samples,
	}
	if e.samples == 0 {
		return stats
	}
	n := float64(e.samples)
	stats.AvgTechnical = e.statTotals[0] / n
	stats.AvgMomentum = e.statTotals[1] / n
	stats.AvgVolatility = e.statTotals[2] / n
	stats.AvgVolume = e.statTotals[3] / n
	stats.AvgSentiment = e.statTotals[4] / n
	return stats
}
