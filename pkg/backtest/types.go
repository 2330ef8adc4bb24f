// Package backtest provides a deterministic daily-bar simulator and the
// performance metrics derived from its output.
package backtest

import (
	"time"

	"github.com/evoquant/evotrader/pkg/signal"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss       ExitReason = "stop_loss"
	ExitTakeProfit     ExitReason = "take_profit"
	ExitSignalReversal ExitReason = "signal_reversal"
	ExitDailyLossLimit ExitReason = "daily_loss_limit"
	ExitEndOfBacktest  ExitReason = "end_of_backtest"
)

// Position is an open long position. Owned exclusively by the engine while
// open; it becomes a Trade on close.
type Position struct {
	Symbol     string            `json:"symbol"`
	EntryDate  time.Time         `json:"entry_date"`
	EntryPrice float64           `json:"entry_price"`
	Shares     float64           `json:"shares"`
	Side       string            `json:"side"`
	StopLoss   float64           `json:"stop_loss"`
	TakeProfit float64           `json:"take_profit"`
	Entry      signal.Components `json:"entry_signal"`
}

// Trade is the immutable record of a closed position.
type Trade struct {
	Symbol      string     `json:"symbol"`
	Side        string     `json:"side"`
	EntryDate   time.Time  `json:"entry_date"`
	ExitDate    time.Time  `json:"exit_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Shares      float64    `json:"shares"`
	PnL         float64    `json:"pnl"`
	Reason      ExitReason `json:"reason"`
	HoldingDays int        `json:"holding_days"`
}

// EquityPoint is total portfolio equity (cash plus mark-to-market of open
// positions) at the end of one simulated date.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// SignalStats aggregates the signals observed during a run.
type SignalStats struct {
	AvgTechnical  float64                  `json:"avg_technical"`
	AvgMomentum   float64                  `json:"avg_momentum"`
	AvgVolatility float64                  `json:"avg_volatility"`
	AvgVolume     float64                  `json:"avg_volume"`
	AvgSentiment  float64                  `json:"avg_sentiment"`
	RegimeCounts  map[signal.Regime]int    `json:"regime_counts"`
	Samples       int                      `json:"samples"`
}

// Result is the complete, read-only output of one simulation run.
type Result struct {
	Config      Config        `json:"config"`
	Trades      []Trade       `json:"trades"`
	Metrics     Metrics       `json:"metrics"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	SignalStats SignalStats   `json:"signal_stats"`
}
