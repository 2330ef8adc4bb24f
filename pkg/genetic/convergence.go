package genetic

import (
	"math"
	"sort"
)

// ConvergenceConfig tunes stagnation detection and the adaptive mutation
// response.
type ConvergenceConfig struct {
	// Window is the number of recent best-fitness values examined.
	Window int `json:"window" mapstructure:"window"`
	// Threshold is the variance below which the window counts as converged.
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
}

// DefaultConvergenceConfig returns the standard detection window.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Window: 10, Threshold: 0.001}
}

// Controller tracks best-fitness history, detects convergence and adapts the
// effective mutation rate in response.
type Controller struct {
	cfg     ConvergenceConfig
	history []float64
}

// NewController builds a convergence controller.
func NewController(cfg ConvergenceConfig) *Controller {
	if cfg.Window < 2 {
		cfg.Window = 10
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.001
	}
	return &Controller{cfg: cfg}
}

// Record appends one generation's best fitness to the history.
func (c *Controller) Record(bestFitness float64) {
	c.history = append(c.history, bestFitness)
}

// Converged reports whether the variance of the last window of best-fitness
// values has fallen below the threshold. Returns false until a full window
// has accumulated.
func (c *Controller) Converged() bool {
	if len(c.history) < c.cfg.Window {
		return false
	}

	window := c.history[len(c.history)-c.cfg.Window:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return variance < c.cfg.Threshold
}

// MutationRate adapts the effective mutation rate. fitnessDiversity is the
// population's fitness coefficient of variation (Population.FitnessDiversity):
// convergence doubles the base rate (capped at 0.5) to punch out of the local
// optimum, a collapsed fitness spread raises it by half, a wide spread lowers
// it.
func (c *Controller) MutationRate(base, fitnessDiversity float64) float64 {
	if c.Converged() {
		return math.Min(2*base, 0.5)
	}

	switch {
	case fitnessDiversity < 0.1:
		return base * 1.5
	case fitnessDiversity > 0.3:
		return base * 0.8
	}
	return base
}

// GenePattern describes a gene whose value separates strong genomes from
// weak ones.
type GenePattern struct {
	Key        string  `json:"key"`
	TopMean    float64 `json:"top_mean"`
	BottomMean float64 `json:"bottom_mean"`
	RelDiff    float64 `json:"rel_diff"`
}

// patternPercentile is the population fraction forming the top and bottom
// cohorts for pattern mining.
const patternPercentile = 0.1

// patternMinRelDiff is the minimum relative difference between cohort means
// for a gene to count as a pattern.
const patternMinRelDiff = 0.1

// MinePatterns compares gene means between the fittest and least fit cohorts
// of the population and reports genes that differ by more than 10% relative
// to the bottom cohort's mean.
func MinePatterns(space *ParameterSpace, genomes []*Genome) []GenePattern {
	n := len(genomes)
	cohort := int(float64(n) * patternPercentile)
	if cohort < 1 {
		return nil
	}

	ranked := make([]*Genome, n)
	copy(ranked, genomes)
	sortByFitness(ranked)

	top := ranked[:cohort]
	bottom := ranked[n-cohort:]

	var patterns []GenePattern
	for _, key := range space.Keys() {
		topMean := geneMean(top, key)
		bottomMean := geneMean(bottom, key)

		base := math.Abs(bottomMean)
		if base == 0 {
			continue
		}
		relDiff := math.Abs(topMean-bottomMean) / base
		if relDiff > patternMinRelDiff {
			patterns = append(patterns, GenePattern{
				Key:        key,
				TopMean:    topMean,
				BottomMean: bottomMean,
				RelDiff:    relDiff,
			})
		}
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].RelDiff > patterns[j].RelDiff })
	return patterns
}

func geneMean(genomes []*Genome, key string) float64 {
	total := 0.0
	for _, g := range genomes {
		total += g.Config[key]
	}
	return total / float64(len(genomes))
}
