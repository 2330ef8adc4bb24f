package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoquant/evotrader/pkg/indicators"
	"github.com/evoquant/evotrader/pkg/market"
)

func ptr(v float64) *float64 { return &v }

// flatSet builds an indicator set of length n with every series nil except
// those provided.
func flatSet(n int, fill func(s *indicators.Set)) *indicators.Set {
	s := &indicators.Set{
		RSI:        make([]*float64, n),
		SMA20:      make([]*float64, n),
		SMA50:      make([]*float64, n),
		EMAFast:    make([]*float64, n),
		EMASlow:    make([]*float64, n),
		ATR:        make([]*float64, n),
		ADX:        make([]*float64, n),
		StochK:     make([]*float64, n),
		StochD:     make([]*float64, n),
		MACDLine:   make([]*float64, n),
		MACDSignal: make([]*float64, n),
		MACDHist:   make([]*float64, n),
		BollUpper:  make([]*float64, n),
		BollMiddle: make([]*float64, n),
		BollLower:  make([]*float64, n),
	}
	if fill != nil {
		fill(s)
	}
	return s
}

func flatBars(n int, price float64) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    1_000_000,
		}
	}
	return bars
}

// ============================================================================
// REGIME DETECTION
// ============================================================================

func TestDetectRegime(t *testing.T) {
	const idx = 60

	tests := []struct {
		name  string
		price float64
		sma20 float64
		sma50 float64
		adx   *float64
		want  Regime
	}{
		{"uptrend", 110, 105, 100, ptr(20.0), RegimeUptrend},
		{"strong uptrend", 110, 105, 100, ptr(30.0), RegimeStrongUptrend},
		{"downtrend", 90, 95, 100, ptr(20.0), RegimeDowntrend},
		{"strong downtrend", 90, 95, 100, ptr(30.0), RegimeStrongDowntrend},
		{"mixed is ranging", 102, 105, 100, ptr(30.0), RegimeRanging},
		{"no adx defaults to weak trend", 110, 105, 100, nil, RegimeUptrend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := flatBars(idx+1, tt.price)
			set := flatSet(idx+1, func(s *indicators.Set) {
				s.SMA20[idx] = ptr(tt.sma20)
				s.SMA50[idx] = ptr(tt.sma50)
				s.ADX[idx] = tt.adx
			})

			assert.Equal(t, tt.want, DetectRegime(idx, bars, set))
		})
	}
}

func TestDetectRegimeWarmup(t *testing.T) {
	bars := flatBars(60, 100)
	set := flatSet(60, func(s *indicators.Set) {
		for i := range s.SMA20 {
			s.SMA20[i] = ptr(90.0)
			s.SMA50[i] = ptr(80.0)
		}
	})

	assert.Equal(t, RegimeUnknown, DetectRegime(10, bars, set), "below warm-up history")
	assert.Equal(t, RegimeUptrend, DetectRegime(55, bars, set))
}

func TestDetectRegimeMissingSMA(t *testing.T) {
	bars := flatBars(60, 100)
	set := flatSet(60, nil)

	assert.Equal(t, RegimeUnknown, DetectRegime(55, bars, set))
}

// ============================================================================
// FACTOR SCORES
// ============================================================================

func TestTechnicalScoreRSI(t *testing.T) {
	const idx = 55

	tests := []struct {
		rsi  float64
		want float64
	}{
		{25, 1.0},
		{35, 0.5},
		{50, 0.0},
		{65, -0.5},
		{75, -1.0},
	}

	for _, tt := range tests {
		bars := flatBars(idx+1, 100)
		set := flatSet(idx+1, func(s *indicators.Set) {
			s.RSI[idx] = ptr(tt.rsi)
		})

		assert.InDelta(t, tt.want, technicalScore(idx, bars, set), 1e-9, "rsi=%v", tt.rsi)
	}
}

func TestTechnicalScoreNoInputs(t *testing.T) {
	bars := flatBars(56, 100)
	set := flatSet(56, nil)

	assert.Zero(t, technicalScore(55, bars, set))
}

func TestTechnicalScoreBollingerPosition(t *testing.T) {
	const idx = 55

	// Price pinned to the lower band scores +1, to the upper band -1.
	bars := flatBars(idx+1, 90)
	set := flatSet(idx+1, func(s *indicators.Set) {
		s.BollUpper[idx] = ptr(110.0)
		s.BollLower[idx] = ptr(90.0)
	})
	assert.InDelta(t, 1.0, technicalScore(idx, bars, set), 1e-9)

	bars = flatBars(idx+1, 110)
	assert.InDelta(t, -1.0, technicalScore(idx, bars, set), 1e-9)
}

func TestVolumeScoreThresholds(t *testing.T) {
	const idx = 30

	tests := []struct {
		ratio float64
		want  float64
	}{
		{2.5, 0.5},
		{1.7, 0.3},
		{1.0, 0.0},
		{0.3, -0.3},
	}

	for _, tt := range tests {
		bars := flatBars(idx+1, 100)
		bars[idx].Volume = 1_000_000 * tt.ratio

		assert.InDelta(t, tt.want, volumeScore(idx, bars), 1e-9, "ratio=%v", tt.ratio)
	}
}

func TestVolumeScoreWarmup(t *testing.T) {
	bars := flatBars(25, 100)
	assert.Zero(t, volumeScore(10, bars))
}

func TestVolatilityScoreADX(t *testing.T) {
	const idx = 55

	tests := []struct {
		adx  float64
		want float64
	}{
		{45, 0.5},
		{30, 0.3},
		{22, 0.0},
		{15, -0.3},
	}

	for _, tt := range tests {
		set := flatSet(idx+1, func(s *indicators.Set) {
			s.ADX[idx] = ptr(tt.adx)
		})

		assert.InDelta(t, tt.want, volatilityScore(idx, set), 1e-9, "adx=%v", tt.adx)
	}
}

func TestSentimentScoreWarmup(t *testing.T) {
	bars := flatBars(40, 100)
	assert.Zero(t, sentimentScore(20, bars, RegimeUptrend))
}

func TestSentimentScoreRegimeBias(t *testing.T) {
	bars := flatBars(60, 100)
	idx := 50

	up := sentimentScore(idx, bars, RegimeStrongUptrend)
	down := sentimentScore(idx, bars, RegimeStrongDowntrend)

	assert.InDelta(t, 0.3, up, 1e-9, "flat prices leave only the regime bias")
	assert.InDelta(t, -0.3, down, 1e-9)
}

// ============================================================================
// COMPOSITE AND CONFIDENCE
// ============================================================================

func TestAtCompositeIsWeightedSum(t *testing.T) {
	const idx = 55

	bars := flatBars(idx+1, 100)
	set := flatSet(idx+1, func(s *indicators.Set) {
		s.RSI[idx] = ptr(25.0) // technical = 1.0
	})

	w := Weights{Technical: 0.5, Momentum: 0.2, Volatility: 0.1, Volume: 0.1, Sentiment: 0.1}
	c := At(idx, bars, set, w)

	require.InDelta(t, 1.0, c.Technical, 1e-9)
	want := c.Technical*w.Technical + c.Momentum*w.Momentum + c.Volatility*w.Volatility +
		c.Volume*w.Volume + c.Sentiment*w.Sentiment
	assert.InDelta(t, want, c.Composite, 1e-9)
}

func TestConfidenceAlignment(t *testing.T) {
	// One strong factor out of five: alignment 0.2.
	c := Components{Technical: 1.0, Composite: 0.5}
	assert.InDelta(t, 0.2*0.5*2, confidence(c), 1e-9)

	// All five factors agree: alignment 1.0, capped at 1.
	c = Components{Technical: 1, Momentum: 1, Volatility: 1, Volume: 1, Sentiment: 1, Composite: 1}
	assert.InDelta(t, 1.0, confidence(c), 1e-9)

	// Weak factors below the 0.2 band contribute no alignment.
	c = Components{Technical: 0.1, Momentum: 0.15, Composite: 0.12}
	assert.Zero(t, confidence(c))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, clamp(-5, -1, 1))
	assert.Equal(t, 1.0, clamp(5, -1, 1))
	assert.Equal(t, 0.5, clamp(0.5, -1, 1))
}
