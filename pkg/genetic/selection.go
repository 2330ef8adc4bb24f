package genetic

import "math/rand"

// SelectionStrategy picks one parent from a population slice. Implementations
// must not modify the slice.
type SelectionStrategy interface {
	Select(pop []*Genome, rng *rand.Rand) *Genome
	Name() string
}

// Tournament selection draws Size genomes uniformly with replacement and
// returns the fittest. Size 1 degenerates to uniform random selection.
type Tournament struct {
	Size int
}

func (t Tournament) Name() string { return "tournament" }

func (t Tournament) Select(pop []*Genome, rng *rand.Rand) *Genome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < t.Size; i++ {
		if candidate := pop[rng.Intn(len(pop))]; candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// Roulette selection picks proportionally to fitness, treating negative
// fitness as 0. When total fitness is 0 it falls back to uniform selection.
type Roulette struct{}

func (Roulette) Name() string { return "roulette" }

func (Roulette) Select(pop []*Genome, rng *rand.Rand) *Genome {
	total := 0.0
	for _, g := range pop {
		if g.Fitness > 0 {
			total += g.Fitness
		}
	}
	if total == 0 {
		return pop[rng.Intn(len(pop))]
	}

	target := rng.Float64() * total
	acc := 0.0
	var last *Genome
	for _, g := range pop {
		if g.Fitness <= 0 {
			continue
		}
		acc += g.Fitness
		last = g
		if acc >= target {
			return g
		}
	}
	return last
}

// Rank selection picks proportionally to fitness rank rather than raw
// fitness, dampening the pull of outlier genomes.
type Rank struct{}

func (Rank) Name() string { return "rank" }

func (Rank) Select(pop []*Genome, rng *rand.Rand) *Genome {
	n := len(pop)
	ranked := make([]*Genome, n)
	copy(ranked, pop)
	sortByFitness(ranked)

	// Rank weights: worst gets 1, best gets n; total is n(n+1)/2.
	total := n * (n + 1) / 2
	target := rng.Intn(total)
	acc := 0
	for i, g := range ranked {
		acc += n - i
		if acc > target {
			return g
		}
	}
	return ranked[n-1]
}

// NewSelectionStrategy resolves a strategy by its configured name, defaulting
// to tournament selection of the given size.
func NewSelectionStrategy(name string, tournamentSize int) SelectionStrategy {
	switch name {
	case "roulette":
		return Roulette{}
	case "rank":
		return Rank{}
	default:
		if tournamentSize < 1 {
			tournamentSize = 3
		}
		return Tournament{Size: tournamentSize}
	}
}
