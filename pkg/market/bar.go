// Package market defines the OHLCV data model and the bar provider boundary.
package market

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Bar represents one OHLCV sample for a symbol at a timestamp.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// Date returns the bar's calendar date truncated to UTC midnight.
func (b Bar) Date() time.Time {
	return b.Timestamp.UTC().Truncate(24 * time.Hour)
}

// BarProvider fetches historical bars for a symbol, sorted ascending by
// timestamp with no duplicate dates. Gaps (non-trading days) are tolerated.
type BarProvider interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// StaticProvider serves bars from an in-memory map. Used in tests and for
// offline runs on pre-loaded data.
type StaticProvider map[string][]Bar

// FetchBars returns the bars for symbol within [start, end], sorted ascending.
func (p StaticProvider) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	all, ok := p[symbol]
	if !ok {
		return nil, fmt.Errorf("no data loaded for symbol %s", symbol)
	}

	bars := make([]Bar, 0, len(all))
	for _, b := range all {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		bars = append(bars, b)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return bars, nil
}
