package genetic

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evoquant/evotrader/pkg/backtest"
	"github.com/evoquant/evotrader/pkg/market"
)

// FitnessWeights apportion the composite fitness score across normalized
// sub-scores. They should sum to 1.
type FitnessWeights struct {
	Sharpe   float64 `json:"sharpe" mapstructure:"sharpe"`
	Sortino  float64 `json:"sortino" mapstructure:"sortino"`
	Calmar   float64 `json:"calmar" mapstructure:"calmar"`
	WinRate  float64 `json:"win_rate" mapstructure:"win_rate"`
	Return   float64 `json:"return" mapstructure:"return"`
	Drawdown float64 `json:"drawdown" mapstructure:"drawdown"`
}

// DefaultFitnessWeights returns the standard scoring blend.
func DefaultFitnessWeights() FitnessWeights {
	return FitnessWeights{
		Sharpe:   0.3,
		Sortino:  0.15,
		Calmar:   0.1,
		WinRate:  0.15,
		Return:   0.15,
		Drawdown: 0.15,
	}
}

// Normalization caps for the fitness sub-scores. Metrics at or above the cap
// score a full 1.0 for that component.
const (
	fitnessSharpeCap   = 3.0
	fitnessSortinoCap  = 4.0
	fitnessCalmarCap   = 2.0
	fitnessReturnCap   = 100.0 // percent
	fitnessDrawdownCap = 50.0  // percent

	// Trade-count penalties discourage configurations that look great on a
	// handful of lucky trades.
	lowTradeCount      = 10
	lowTradePenalty    = 0.5
	mediumTradeCount   = 20
	mediumTradePenalty = 0.8
)

// Evaluator scores genomes by running the backtest engine over a fixed data
// set. It is stateless across evaluations and safe for concurrent use.
type Evaluator struct {
	InitialCapital float64
	Data           map[string][]market.Bar
	Weights        FitnessWeights

	logger zerolog.Logger
}

// NewEvaluator builds an evaluator over the given bar data.
func NewEvaluator(initialCapital float64, data map[string][]market.Bar, weights FitnessWeights) *Evaluator {
	return &Evaluator{
		InitialCapital: initialCapital,
		Data:           data,
		Weights:        weights,
		logger:         log.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate runs one simulation for the genome and stores fitness and metrics
// on it. A panicking or failing simulation scores 0 so a single bad
// configuration cannot abort a whole generation.
func (ev *Evaluator) Evaluate(ctx context.Context, g *Genome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ev.logger.Error().
				Str("genome", g.ID.String()).
				Interface("panic", r).
				Msg("Simulation fault, scoring 0")
			g.Fitness = 0
			g.Metrics = &backtest.Metrics{}
			err = nil
		}
	}()

	cfg := backtest.FromGenes(ev.InitialCapital, g.Config)
	engine := backtest.NewEngine(cfg, ev.Data)

	result, err := engine.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev.logger.Warn().
			Str("genome", g.ID.String()).
			Err(err).
			Msg("Simulation failed, scoring 0")
		g.Fitness = 0
		g.Metrics = &backtest.Metrics{}
		return nil
	}

	g.Metrics = &result.Metrics
	g.Fitness = Score(result.Metrics, ev.Weights)
	return nil
}

// Score maps backtest metrics to a fitness value in [0, 100]. Each metric is
// normalized against its cap and clipped to [0, 1], blended by the weights,
// then discounted for thin trade samples.
func Score(m backtest.Metrics, w FitnessWeights) float64 {
	score := w.Sharpe*clip01(m.SharpeRatio/fitnessSharpeCap) +
		w.Sortino*clip01(m.SortinoRatio/fitnessSortinoCap) +
		w.Calmar*clip01(m.CalmarRatio/fitnessCalmarCap) +
		w.WinRate*clip01(m.WinRate/100) +
		w.Return*clip01(m.TotalReturnPct/fitnessReturnCap) +
		w.Drawdown*clip01(1-m.MaxDrawdownPct/fitnessDrawdownCap)

	switch {
	case m.TotalTrades < lowTradeCount:
		score *= lowTradePenalty
	case m.TotalTrades < mediumTradeCount:
		score *= mediumTradePenalty
	}

	if score < 0 {
		return 0
	}
	return score * 100
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
