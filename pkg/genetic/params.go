// Package genetic implements the evolutionary optimizer: genome model and
// parameter space, crossover/mutation/selection operators, island population
// management, fitness evaluation and convergence-adaptive mutation.
package genetic

import (
	"math"
	"math/rand"
	"sort"

	"github.com/evoquant/evotrader/pkg/backtest"
)

// GeneKind distinguishes how a gene's values are drawn and snapped.
type GeneKind int

const (
	GeneContinuous GeneKind = iota
	GeneInteger
	GeneBoolean
)

// GeneSpec declares the bounds, granularity and kind of one parameter.
type GeneSpec struct {
	Min  float64
	Max  float64
	Step float64
	Kind GeneKind
}

// ParameterSpace is the statically declared schema of the searchable
// parameters, plus the groups of genes whose values must sum to 1.
type ParameterSpace struct {
	specs        map[string]GeneSpec
	keys         []string
	weightGroups [][]string
}

// NewParameterSpace builds a space from explicit specs and weight groups.
// Keys iterate in sorted order so runs are reproducible.
func NewParameterSpace(specs map[string]GeneSpec, weightGroups [][]string) *ParameterSpace {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &ParameterSpace{specs: specs, keys: keys, weightGroups: weightGroups}
}

// DefaultSpace returns the trading-strategy parameter space searched by the
// optimizer.
func DefaultSpace() *ParameterSpace {
	specs := map[string]GeneSpec{
		backtest.GeneMaxPositionPct:       {Min: 0.02, Max: 0.25, Step: 0.01},
		backtest.GeneMaxPortfolioExposure: {Min: 0.5, Max: 1.0, Step: 0.05},
		backtest.GeneMaxDailyLoss:         {Min: 0.01, Max: 0.06, Step: 0.005},
		backtest.GeneStopLossATR:          {Min: 1.0, Max: 4.0, Step: 0.25},
		backtest.GeneTakeProfitATR:        {Min: 1.5, Max: 6.0, Step: 0.25},
		backtest.GeneBuyThreshold:         {Min: 0.1, Max: 0.6, Step: 0.01},
		backtest.GeneSellThreshold:        {Min: 0.1, Max: 0.6, Step: 0.01},
		backtest.GeneConfidenceMin:        {Min: 0.1, Max: 0.6, Step: 0.01},
		backtest.GeneRSIPeriod:            {Min: 7, Max: 21, Step: 1, Kind: GeneInteger},
		backtest.GeneEMAFastPeriod:        {Min: 5, Max: 20, Step: 1, Kind: GeneInteger},
		backtest.GeneEMASlowPeriod:        {Min: 21, Max: 60, Step: 1, Kind: GeneInteger},
		backtest.GeneATRPeriod:            {Min: 7, Max: 21, Step: 1, Kind: GeneInteger},
		backtest.GeneTrailingStop:         {Min: 0, Max: 1, Step: 1, Kind: GeneBoolean},
		backtest.GeneWeightTechnical:      {Min: 0, Max: 1, Step: 0.01},
		backtest.GeneWeightMomentum:       {Min: 0, Max: 1, Step: 0.01},
		backtest.GeneWeightVolatility:     {Min: 0, Max: 1, Step: 0.01},
		backtest.GeneWeightVolume:         {Min: 0, Max: 1, Step: 0.01},
		backtest.GeneWeightSentiment:      {Min: 0, Max: 1, Step: 0.01},
	}

	weightGroup := []string{
		backtest.GeneWeightTechnical,
		backtest.GeneWeightMomentum,
		backtest.GeneWeightVolatility,
		backtest.GeneWeightVolume,
		backtest.GeneWeightSentiment,
	}

	return NewParameterSpace(specs, [][]string{weightGroup})
}

// Keys returns the gene keys in stable (sorted) order.
func (s *ParameterSpace) Keys() []string { return s.keys }

// Spec returns the declaration for one gene key.
func (s *ParameterSpace) Spec(key string) (GeneSpec, bool) {
	spec, ok := s.specs[key]
	return spec, ok
}

// WeightGroups returns the gene groups whose values must sum to 1.
func (s *ParameterSpace) WeightGroups() [][]string { return s.weightGroups }

// Random draws a uniform value for the gene, snapped to its step and clamped
// to its bounds.
func (s *ParameterSpace) Random(key string, rng *rand.Rand) float64 {
	spec := s.specs[key]
	if spec.Kind == GeneBoolean {
		if rng.Float64() < 0.5 {
			return 0
		}
		return 1
	}
	return s.Constrain(key, spec.Min+rng.Float64()*(spec.Max-spec.Min))
}

// Constrain snaps a value to the gene's step granularity and clamps it to its
// declared bounds.
func (s *ParameterSpace) Constrain(key string, v float64) float64 {
	spec, ok := s.specs[key]
	if !ok {
		return v
	}

	if spec.Kind == GeneBoolean {
		if v >= 0.5 {
			return 1
		}
		return 0
	}

	if spec.Step > 0 {
		v = math.Round(v/spec.Step) * spec.Step
	}
	if spec.Kind == GeneInteger {
		v = math.Round(v)
	}

	if v < spec.Min {
		v = spec.Min
	}
	if v > spec.Max {
		v = spec.Max
	}
	return v
}

// NormalizeWeights rescales every weight group in genes to sum to 1, rounding
// each weight to 2 decimals and folding the rounding residual into the
// largest weight so the invariant holds exactly. A group summing to 0 is left
// untouched.
func (s *ParameterSpace) NormalizeWeights(genes map[string]float64) {
	for _, group := range s.weightGroups {
		sum := 0.0
		for _, key := range group {
			sum += genes[key]
		}
		if sum == 0 {
			continue
		}

		largestKey := group[0]
		rounded := 0.0
		for _, key := range group {
			w := math.Round(genes[key]/sum*100) / 100
			genes[key] = w
			rounded += w
			if w > genes[largestKey] {
				largestKey = key
			}
		}

		if residual := 1 - rounded; residual != 0 {
			genes[largestKey] = math.Round((genes[largestKey]+residual)*100) / 100
		}
	}
}
