package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoquant/evotrader/pkg/market"
)

func testBars(n int) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return market.SyntheticSeries("TEST", start, n, 42, market.DefaultSyntheticConfig())
}

func TestComputeAlignment(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	n := len(bars)
	series := map[string][]*float64{
		"rsi":         set.RSI,
		"sma20":       set.SMA20,
		"sma50":       set.SMA50,
		"ema_fast":    set.EMAFast,
		"ema_slow":    set.EMASlow,
		"atr":         set.ATR,
		"adx":         set.ADX,
		"stoch_k":     set.StochK,
		"stoch_d":     set.StochD,
		"macd_line":   set.MACDLine,
		"macd_signal": set.MACDSignal,
		"macd_hist":   set.MACDHist,
		"boll_upper":  set.BollUpper,
		"boll_middle": set.BollMiddle,
		"boll_lower":  set.BollLower,
	}

	for name, s := range series {
		require.Len(t, s, n, "%s must align with bars", name)
		assert.Nil(t, s[0], "%s must be warming up at index 0", name)
		assert.NotNil(t, s[n-1], "%s must be populated at the last bar", name)
	}
}

func TestComputeWarmupOrdering(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	// Once a series produces a value it stays populated to the end.
	for _, s := range [][]*float64{set.RSI, set.SMA50, set.ATR, set.ADX} {
		seen := false
		for i, v := range s {
			if v != nil {
				seen = true
			} else {
				assert.False(t, seen, "nil after first value at index %d", i)
			}
		}
		assert.True(t, seen)
	}
}

func TestSMA20IsTrailingMean(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := market.RisingSeries("TEST", start, 60, 1.0)
	set := Compute(bars, Config{})

	idx := 40
	require.NotNil(t, set.SMA20[idx])

	sum := 0.0
	for i := idx - sma20Period + 1; i <= idx; i++ {
		sum += bars[i].Close
	}
	assert.InDelta(t, sum/sma20Period, *set.SMA20[idx], 1e-9)
}

func TestATRPositiveAndFinite(t *testing.T) {
	bars := testBars(120)
	set := Compute(bars, Config{ATRPeriod: 14})

	count := 0
	for _, v := range set.ATR {
		if v == nil {
			continue
		}
		assert.Positive(t, *v)
		count++
	}
	assert.Greater(t, count, 80, "ATR should populate after its warm-up")
}

func TestADXWithinBounds(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	for i, v := range set.ADX {
		if v == nil {
			continue
		}
		assert.GreaterOrEqual(t, *v, 0.0, "index %d", i)
		assert.LessOrEqual(t, *v, 100.0, "index %d", i)
	}
}

func TestStochasticWithinBounds(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	for i := range bars {
		if k := set.StochK[i]; k != nil {
			assert.GreaterOrEqual(t, *k, 0.0, "K index %d", i)
			assert.LessOrEqual(t, *k, 100.0, "K index %d", i)
		}
		if d := set.StochD[i]; d != nil {
			assert.GreaterOrEqual(t, *d, 0.0, "D index %d", i)
			assert.LessOrEqual(t, *d, 100.0, "D index %d", i)
		}
	}
}

func TestBollingerBandOrdering(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	for i := range bars {
		u, m, l := set.BollUpper[i], set.BollMiddle[i], set.BollLower[i]
		if u == nil || m == nil || l == nil {
			continue
		}
		assert.GreaterOrEqual(t, *u, *m, "index %d", i)
		assert.GreaterOrEqual(t, *m, *l, "index %d", i)
	}
}

func TestMACDHistogramConsistency(t *testing.T) {
	bars := testBars(200)
	set := Compute(bars, Config{})

	for i := range bars {
		line, sig, hist := set.MACDLine[i], set.MACDSignal[i], set.MACDHist[i]
		if line == nil || sig == nil {
			assert.Nil(t, hist, "index %d", i)
			continue
		}
		require.NotNil(t, hist, "index %d", i)
		assert.InDelta(t, *line-*sig, *hist, 1e-9, "index %d", i)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, defaultRSIPeriod, cfg.RSIPeriod)
	assert.Equal(t, defaultEMAFastPeriod, cfg.EMAFastPeriod)
	assert.Equal(t, defaultEMASlowPeriod, cfg.EMASlowPeriod)
	assert.Equal(t, defaultATRPeriod, cfg.ATRPeriod)

	custom := Config{RSIPeriod: 9}.withDefaults()
	assert.Equal(t, 9, custom.RSIPeriod)
	assert.Equal(t, defaultATRPeriod, custom.ATRPeriod)
}
