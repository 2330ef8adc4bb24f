package genetic

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evoquant/evotrader/pkg/backtest"
	"github.com/evoquant/evotrader/pkg/market"
)

func TestScoreCappedMetrics(t *testing.T) {
	// Every sub-score at its cap except drawdown, which is at its worst.
	m := backtest.Metrics{
		TotalTrades:    5, // below 10 trades: halve the score
		SharpeRatio:    3,
		SortinoRatio:   4,
		CalmarRatio:    2,
		WinRate:        100,
		TotalReturnPct: 100,
		MaxDrawdownPct: 50,
	}

	// Base 0.85, low-trade penalty 0.5, scaled to 100.
	assert.InDelta(t, 42.5, Score(m, DefaultFitnessWeights()), 1e-9)
}

func TestScoreTradePenaltyTiers(t *testing.T) {
	base := backtest.Metrics{
		SharpeRatio:    3,
		SortinoRatio:   4,
		CalmarRatio:    2,
		WinRate:        100,
		TotalReturnPct: 100,
		MaxDrawdownPct: 0,
	}
	w := DefaultFitnessWeights()

	full := base
	full.TotalTrades = 25
	medium := base
	medium.TotalTrades = 15
	low := base
	low.TotalTrades = 5

	assert.InDelta(t, 100.0, Score(full, w), 1e-9)
	assert.InDelta(t, 80.0, Score(medium, w), 1e-9)
	assert.InDelta(t, 50.0, Score(low, w), 1e-9)
}

func TestScoreClipsSubScores(t *testing.T) {
	w := DefaultFitnessWeights()

	// Absurdly good metrics cannot exceed 100.
	m := backtest.Metrics{
		TotalTrades:    100,
		SharpeRatio:    50,
		SortinoRatio:   50,
		CalmarRatio:    50,
		WinRate:        100,
		TotalReturnPct: 5000,
		MaxDrawdownPct: 0,
	}
	assert.InDelta(t, 100.0, Score(m, w), 1e-9)

	// Catastrophic metrics floor at 0.
	bad := backtest.Metrics{
		TotalTrades:    100,
		SharpeRatio:    -10,
		SortinoRatio:   -10,
		CalmarRatio:    -10,
		WinRate:        0,
		TotalReturnPct: -90,
		MaxDrawdownPct: 95,
	}
	assert.Zero(t, Score(bad, w))
}

func TestScoreInfiniteProfitFactorSafe(t *testing.T) {
	m := backtest.Metrics{
		TotalTrades:  30,
		ProfitFactor: math.Inf(1),
		SharpeRatio:  1,
	}

	score := Score(m, DefaultFitnessWeights())
	assert.False(t, math.IsInf(score, 0))
	assert.False(t, math.IsNaN(score))
}

func TestEvaluatorScoresGenome(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := map[string][]market.Bar{
		"TEST": market.SyntheticSeries("TEST", start, 200, 42, market.DefaultSyntheticConfig()),
	}

	ev := NewEvaluator(10_000, data, DefaultFitnessWeights())

	g := NewRandomGenome(DefaultSpace(), testRNG(), 0, 0)
	require.False(t, g.Evaluated())

	err := ev.Evaluate(context.Background(), g)
	require.NoError(t, err)

	assert.True(t, g.Evaluated())
	assert.GreaterOrEqual(t, g.Fitness, 0.0)
	assert.LessOrEqual(t, g.Fitness, 100.0)
	require.NotNil(t, g.Metrics)
	assert.Equal(t, 10_000.0, g.Metrics.InitialCapital)
}

func TestEvaluatorEmptyDataScoresZero(t *testing.T) {
	ev := NewEvaluator(10_000, nil, DefaultFitnessWeights())

	g := NewRandomGenome(DefaultSpace(), testRNG(), 0, 0)
	err := ev.Evaluate(context.Background(), g)

	require.NoError(t, err, "a failed simulation is absorbed, not propagated")
	assert.Zero(t, g.Fitness)
	assert.True(t, g.Evaluated(), "the genome is marked evaluated so it is not retried")
}

func TestEvaluatorPropagatesCancellation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := map[string][]market.Bar{
		"TEST": market.SyntheticSeries("TEST", start, 200, 42, market.DefaultSyntheticConfig()),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := NewEvaluator(10_000, data, DefaultFitnessWeights())
	g := NewRandomGenome(DefaultSpace(), testRNG(), 0, 0)

	err := ev.Evaluate(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultFitnessWeightsSumToOne(t *testing.T) {
	w := DefaultFitnessWeights()
	sum := w.Sharpe + w.Sortino + w.Calmar + w.WinRate + w.Return + w.Drawdown
	assert.InDelta(t, 1.0, sum, 1e-9)
}
