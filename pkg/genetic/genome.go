package genetic

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/evoquant/evotrader/pkg/backtest"
)

// Genome is one candidate strategy configuration together with its lineage
// and evaluation state. Fitness 0 with nil Metrics means "not yet evaluated".
type Genome struct {
	ID         uuid.UUID          `json:"id"`
	Config     map[string]float64 `json:"config"`
	Fitness    float64            `json:"fitness"`
	Metrics    *backtest.Metrics  `json:"metrics,omitempty"`
	Generation int                `json:"generation"`
	Island     int                `json:"island"`
	Parents    []uuid.UUID        `json:"parents,omitempty"`
	Mutations  []string           `json:"mutations,omitempty"`
}

// NewRandomGenome draws a genome uniformly from the parameter space, with
// weight groups normalized to sum to 1.
func NewRandomGenome(space *ParameterSpace, rng *rand.Rand, generation, island int) *Genome {
	genes := make(map[string]float64, len(space.Keys()))
	for _, key := range space.Keys() {
		genes[key] = space.Random(key, rng)
	}
	space.NormalizeWeights(genes)

	return &Genome{
		ID:         uuid.New(),
		Config:     genes,
		Generation: generation,
		Island:     island,
	}
}

// Clone returns a deep copy of the genome carrying a fresh ID, the given
// generation and the original as sole parent. Fitness and metrics reset.
func (g *Genome) Clone(generation int) *Genome {
	genes := make(map[string]float64, len(g.Config))
	for k, v := range g.Config {
		genes[k] = v
	}

	return &Genome{
		ID:         uuid.New(),
		Config:     genes,
		Generation: generation,
		Island:     g.Island,
		Parents:    []uuid.UUID{g.ID},
	}
}

// Copy returns an exact duplicate of the genome, evaluation state included.
// Migration uses this to move individuals between islands without sharing
// the underlying map.
func (g *Genome) Copy() *Genome {
	genes := make(map[string]float64, len(g.Config))
	for k, v := range g.Config {
		genes[k] = v
	}

	dup := *g
	dup.Config = genes
	dup.Parents = append([]uuid.UUID(nil), g.Parents...)
	dup.Mutations = append([]string(nil), g.Mutations...)
	return &dup
}

// Evaluated reports whether the genome already carries simulation results.
func (g *Genome) Evaluated() bool { return g.Metrics != nil }
