package genetic

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

const (
	// crossoverParent1Bias and crossoverParent2Bias split the per-gene draw:
	// below the first bound the child takes parent 1's gene, below the second
	// parent 2's, otherwise a blend of the two.
	crossoverParent1Bias = 0.4
	crossoverParent2Bias = 0.8

	// mutationSigmaFraction scales the gaussian mutation step to a fraction
	// of the gene's full range.
	mutationSigmaFraction = 0.1
)

// Crossover produces a child genome by per-gene recombination of two parents.
// Each gene is taken from parent 1, parent 2, or a random blend of both,
// snapped back onto the parameter space. The child carries both parent IDs
// and starts unevaluated.
func Crossover(space *ParameterSpace, p1, p2 *Genome, rng *rand.Rand, generation int) *Genome {
	genes := make(map[string]float64, len(space.Keys()))

	for _, key := range space.Keys() {
		v1, v2 := p1.Config[key], p2.Config[key]

		switch r := rng.Float64(); {
		case r < crossoverParent1Bias:
			genes[key] = v1
		case r < crossoverParent2Bias:
			genes[key] = v2
		default:
			alpha := rng.Float64()
			genes[key] = space.Constrain(key, alpha*v1+(1-alpha)*v2)
		}
	}

	space.NormalizeWeights(genes)

	return &Genome{
		ID:         uuid.New(),
		Config:     genes,
		Generation: generation,
		Island:     p1.Island,
		Parents:    []uuid.UUID{p1.ID, p2.ID},
	}
}

// Mutate perturbs the genome's genes in place. Each gene mutates with
// probability rate*adaptiveFactor: booleans flip, numeric genes take a
// gaussian step sized to the gene's range, snapped back onto the space.
// Every applied change is appended to the genome's mutation log, and the
// genome's evaluation state resets when anything changed.
func Mutate(space *ParameterSpace, g *Genome, rate, adaptiveFactor float64, rng *rand.Rand) {
	prob := rate * adaptiveFactor
	changed := false

	for _, key := range space.Keys() {
		if rng.Float64() >= prob {
			continue
		}

		spec, _ := space.Spec(key)
		old := g.Config[key]

		var next float64
		if spec.Kind == GeneBoolean {
			next = 1 - old
		} else {
			sigma := mutationSigmaFraction * (spec.Max - spec.Min) * adaptiveFactor
			next = space.Constrain(key, old+rng.NormFloat64()*sigma)
		}

		if next == old {
			continue
		}

		g.Config[key] = next
		g.Mutations = append(g.Mutations, fmt.Sprintf("%s: %.4f -> %.4f", key, old, next))
		changed = true
	}

	if changed {
		space.NormalizeWeights(g.Config)
		g.Fitness = 0
		g.Metrics = nil
	}
}
