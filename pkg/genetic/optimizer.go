package genetic

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/evoquant/evotrader/pkg/market"
)

// OptimizerConfig is the full optimizer setup.
type OptimizerConfig struct {
	Generations       int   `json:"generations" mapstructure:"generations"`
	Concurrency       int   `json:"concurrency" mapstructure:"concurrency"`
	Seed              int64 `json:"seed" mapstructure:"seed"`
	MigrationInterval int   `json:"migration_interval" mapstructure:"migration_interval"`

	Population  PopulationConfig  `json:"population" mapstructure:"population"`
	Convergence ConvergenceConfig `json:"convergence" mapstructure:"convergence"`
	Fitness     FitnessWeights    `json:"fitness" mapstructure:"fitness"`
}

// DefaultOptimizerConfig returns a workable baseline setup.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Generations:       30,
		Concurrency:       4,
		MigrationInterval: 5,
		Population:        DefaultPopulationConfig(),
		Convergence:       DefaultConvergenceConfig(),
		Fitness:           DefaultFitnessWeights(),
	}
}

// GenerationStats summarizes one completed generation.
type GenerationStats struct {
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	AvgFitness   float64 `json:"avg_fitness"`
	Diversity    float64 `json:"diversity"`
	MutationRate float64 `json:"mutation_rate"`
	Population   int     `json:"population"`
}

// OptimizationResult is the outcome of a full optimizer run.
type OptimizationResult struct {
	Best             *Genome           `json:"best"`
	History          []GenerationStats `json:"history"`
	Patterns         []GenePattern     `json:"patterns"`
	TotalEvaluations int               `json:"total_evaluations"`
	Elapsed          time.Duration     `json:"elapsed"`
}

// Optimizer evolves strategy configurations against historical bar data.
type Optimizer struct {
	cfg       OptimizerConfig
	space     *ParameterSpace
	evaluator *Evaluator
	rng       *rand.Rand
	logger    zerolog.Logger
}

// NewOptimizer builds an optimizer over the given data. A zero seed is
// replaced with the current time so unseeded runs still vary.
func NewOptimizer(cfg OptimizerConfig, space *ParameterSpace, initialCapital float64, data map[string][]market.Bar) *Optimizer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Optimizer{
		cfg:       cfg,
		space:     space,
		evaluator: NewEvaluator(initialCapital, data, cfg.Fitness),
		rng:       rand.New(rand.NewSource(seed)), // #nosec G404 -- reproducible search, not crypto
		logger:    log.With().Str("component", "optimizer").Logger(),
	}
}

// Run executes the evolutionary search. Cancellation is honored at
// generation boundaries: the partially evaluated generation is discarded and
// the best genome found so far is returned without error when at least one
// generation completed.
func (o *Optimizer) Run(ctx context.Context) (*OptimizationResult, error) {
	start := time.Now()

	pop := NewPopulation(o.cfg.Population, o.space, o.rng)
	controller := NewController(o.cfg.Convergence)

	result := &OptimizationResult{}

	for gen := 0; gen < o.cfg.Generations; gen++ {
		evaluated, err := o.evaluateAll(ctx, pop.Genomes)
		result.TotalEvaluations += evaluated
		if err != nil {
			if result.Best != nil {
				o.logger.Warn().Int("generation", gen).Msg("Canceled, returning best so far")
				break
			}
			return nil, err
		}

		best := pop.Best()
		diversity := pop.Diversity()
		fitnessDiversity := pop.FitnessDiversity()
		controller.Record(best.Fitness)
		rate := controller.MutationRate(o.cfg.Population.MutationRate, fitnessDiversity)
		adaptiveFactor := 1.0
		if o.cfg.Population.MutationRate > 0 {
			adaptiveFactor = rate / o.cfg.Population.MutationRate
		}

		stats := GenerationStats{
			Generation:   gen,
			BestFitness:  best.Fitness,
			AvgFitness:   pop.AverageFitness(),
			Diversity:    diversity,
			MutationRate: rate,
			Population:   len(pop.Genomes),
		}
		result.History = append(result.History, stats)

		if result.Best == nil || best.Fitness > result.Best.Fitness {
			result.Best = best.Copy()
		}

		o.logger.Info().
			Int("generation", gen).
			Float64("best_fitness", stats.BestFitness).
			Float64("avg_fitness", stats.AvgFitness).
			Float64("diversity", stats.Diversity).
			Float64("fitness_diversity", fitnessDiversity).
			Float64("mutation_rate", rate).
			Int("population", stats.Population).
			Msg("Generation complete")

		if gen == o.cfg.Generations-1 {
			break
		}

		pop.NextGeneration(adaptiveFactor)
		if o.cfg.MigrationInterval > 0 && (gen+1)%o.cfg.MigrationInterval == 0 {
			pop.Migrate()
		}
	}

	if result.Best == nil {
		return nil, fmt.Errorf("no generation completed")
	}

	result.Patterns = MinePatterns(o.space, pop.Genomes)
	result.Elapsed = time.Since(start)

	o.logger.Info().
		Str("best_genome", result.Best.ID.String()).
		Float64("best_fitness", result.Best.Fitness).
		Int("evaluations", result.TotalEvaluations).
		Dur("elapsed", result.Elapsed).
		Msg("Optimization complete")

	return result, nil
}

// evaluateAll scores every unevaluated genome concurrently, bounded by the
// configured concurrency. Returns the number of simulations actually run.
func (o *Optimizer) evaluateAll(ctx context.Context, genomes []*Genome) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	evaluated := 0
	for _, genome := range genomes {
		if genome.Evaluated() {
			continue
		}
		evaluated++

		genome := genome
		g.Go(func() error {
			return o.evaluator.Evaluate(gctx, genome)
		})
	}

	if err := g.Wait(); err != nil {
		return evaluated, err
	}
	return evaluated, nil
}
