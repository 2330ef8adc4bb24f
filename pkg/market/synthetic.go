package market

import (
	"math"
	"math/rand"
	"time"
)

// SyntheticConfig controls the shape of a generated price series.
type SyntheticConfig struct {
	StartPrice float64
	Drift      float64 // mean daily return, e.g. 0.0005
	Volatility float64 // daily return stddev, e.g. 0.02
	BaseVolume float64
}

// DefaultSyntheticConfig returns parameters resembling a liquid large-cap.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		StartPrice: 100.0,
		Drift:      0.0004,
		Volatility: 0.018,
		BaseVolume: 1_000_000,
	}
}

// SyntheticSeries generates n daily bars as a seeded geometric random walk.
// The same seed always yields the same series, so offline runs and tests are
// reproducible.
func SyntheticSeries(symbol string, start time.Time, n int, seed int64, cfg SyntheticConfig) []Bar {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic fixture data, not crypto

	bars := make([]Bar, 0, n)
	price := cfg.StartPrice
	day := start.UTC().Truncate(24 * time.Hour)

	for i := 0; i < n; i++ {
		ret := cfg.Drift + rng.NormFloat64()*cfg.Volatility
		open := price
		close := price * math.Exp(ret)

		high := math.Max(open, close) * (1 + math.Abs(rng.NormFloat64())*cfg.Volatility*0.5)
		low := math.Min(open, close) * (1 - math.Abs(rng.NormFloat64())*cfg.Volatility*0.5)

		volume := cfg.BaseVolume * (0.5 + rng.Float64())

		bars = append(bars, Bar{
			Symbol:     symbol,
			Timestamp:  day,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     volume,
			TradeCount: int64(volume / 100),
			VWAP:       (high + low + close) / 3,
		})

		price = close
		day = day.Add(24 * time.Hour)
	}

	return bars
}

// RisingSeries generates n daily bars with a strictly increasing close, used
// to exercise trend-following entries without stop-outs.
func RisingSeries(symbol string, start time.Time, n int, step float64) []Bar {
	bars := make([]Bar, 0, n)
	price := 100.0
	day := start.UTC().Truncate(24 * time.Hour)

	for i := 0; i < n; i++ {
		open := price
		close := price + step
		bars = append(bars, Bar{
			Symbol:     symbol,
			Timestamp:  day,
			Open:       open,
			High:       close + step*0.25,
			Low:        open - step*0.25,
			Close:      close,
			Volume:     1_000_000,
			TradeCount: 10_000,
			VWAP:       (open + close) / 2,
		})
		price = close
		day = day.Add(24 * time.Hour)
	}

	return bars
}
