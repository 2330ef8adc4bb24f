package genetic

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PopulationConfig controls population size, variation pressure and the
// island topology.
type PopulationConfig struct {
	Size           int     `json:"size" mapstructure:"size"`
	EliteCount     int     `json:"elite_count" mapstructure:"elite_count"`
	CrossoverRate  float64 `json:"crossover_rate" mapstructure:"crossover_rate"`
	MutationRate   float64 `json:"mutation_rate" mapstructure:"mutation_rate"`
	Islands        int     `json:"islands" mapstructure:"islands"`
	MigrationCount int     `json:"migration_count" mapstructure:"migration_count"`
	Selection      string  `json:"selection" mapstructure:"selection"`
	TournamentSize int     `json:"tournament_size" mapstructure:"tournament_size"`
}

// DefaultPopulationConfig returns a moderately sized setup suitable for
// daily-bar strategy searches.
func DefaultPopulationConfig() PopulationConfig {
	return PopulationConfig{
		Size:           50,
		EliteCount:     2,
		CrossoverRate:  0.7,
		MutationRate:   0.1,
		Islands:        4,
		MigrationCount: 2,
		Selection:      "tournament",
		TournamentSize: 3,
	}
}

// Population is the evolving set of genomes partitioned into islands.
type Population struct {
	cfg       PopulationConfig
	space     *ParameterSpace
	selection SelectionStrategy
	rng       *rand.Rand
	logger    zerolog.Logger

	Genomes    []*Genome
	Generation int
}

// NewPopulation seeds a fresh random population. Islands are assigned round
// robin so every island starts with an equal share.
func NewPopulation(cfg PopulationConfig, space *ParameterSpace, rng *rand.Rand) *Population {
	genomes := make([]*Genome, cfg.Size)
	for i := range genomes {
		island := 0
		if cfg.Islands > 0 {
			island = i % cfg.Islands
		}
		genomes[i] = NewRandomGenome(space, rng, 0, island)
	}

	return &Population{
		cfg:       cfg,
		space:     space,
		selection: NewSelectionStrategy(cfg.Selection, cfg.TournamentSize),
		rng:       rng,
		logger:    log.With().Str("component", "population").Logger(),
		Genomes:   genomes,
	}
}

// Best returns the fittest genome, or nil for an empty population.
func (p *Population) Best() *Genome {
	var best *Genome
	for _, g := range p.Genomes {
		if best == nil || g.Fitness > best.Fitness {
			best = g
		}
	}
	return best
}

// AverageFitness returns the mean fitness across the population.
func (p *Population) AverageFitness() float64 {
	if len(p.Genomes) == 0 {
		return 0
	}
	total := 0.0
	for _, g := range p.Genomes {
		total += g.Fitness
	}
	return total / float64(len(p.Genomes))
}

// Diversity measures genetic spread as the mean per-gene standard deviation,
// each gene normalized by its declared range. 0 means a fully converged
// population.
func (p *Population) Diversity() float64 {
	if len(p.Genomes) < 2 {
		return 0
	}

	total := 0.0
	counted := 0
	for _, key := range p.space.Keys() {
		spec, _ := p.space.Spec(key)
		span := spec.Max - spec.Min
		if span <= 0 {
			continue
		}

		mean := 0.0
		for _, g := range p.Genomes {
			mean += g.Config[key]
		}
		mean /= float64(len(p.Genomes))

		variance := 0.0
		for _, g := range p.Genomes {
			d := g.Config[key] - mean
			variance += d * d
		}
		variance /= float64(len(p.Genomes))

		total += math.Sqrt(variance) / span
		counted++
	}

	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

// FitnessDiversity measures fitness spread as the coefficient of variation
// of the population's fitness values: stddev/(mean+eps). 0 means everyone
// scores the same; this is the input to adaptive mutation, while Diversity
// above is reported for monitoring.
func (p *Population) FitnessDiversity() float64 {
	if len(p.Genomes) < 2 {
		return 0
	}

	mean := 0.0
	for _, g := range p.Genomes {
		mean += g.Fitness
	}
	mean /= float64(len(p.Genomes))

	variance := 0.0
	for _, g := range p.Genomes {
		d := g.Fitness - mean
		variance += d * d
	}
	variance /= float64(len(p.Genomes))

	return math.Sqrt(variance) / (mean + 1e-9)
}

// NextGeneration replaces the population with elites plus offspring bred
// within each island. adaptiveFactor scales mutation pressure; selection and
// crossover operate per island so lineages stay separated between migrations.
func (p *Population) NextGeneration(adaptiveFactor float64) {
	p.Generation++

	next := make([]*Genome, 0, p.cfg.Size)

	// Global elitism: the overall best genomes survive unchanged.
	elites := make([]*Genome, len(p.Genomes))
	copy(elites, p.Genomes)
	sortByFitness(elites)
	for i := 0; i < p.cfg.EliteCount && i < len(elites); i++ {
		next = append(next, elites[i])
	}

	islands := p.byIsland()

	islandCount := p.cfg.Islands
	if islandCount < 1 {
		islandCount = 1
	}

	for len(next) < p.cfg.Size {
		for island := 0; island < islandCount; island++ {
			if len(next) >= p.cfg.Size {
				break
			}
			members := islands[island]
			if len(members) == 0 {
				continue
			}

			var child *Genome
			if len(members) > 1 && p.rng.Float64() < p.cfg.CrossoverRate {
				p1 := p.selection.Select(members, p.rng)
				p2 := p.selection.Select(members, p.rng)
				child = Crossover(p.space, p1, p2, p.rng, p.Generation)
			} else {
				// No crossover: still select twice and clone the fitter.
				p1 := p.selection.Select(members, p.rng)
				p2 := p.selection.Select(members, p.rng)
				if p2.Fitness > p1.Fitness {
					p1 = p2
				}
				child = p1.Clone(p.Generation)
			}
			child.Island = island

			Mutate(p.space, child, p.cfg.MutationRate, adaptiveFactor, p.rng)
			next = append(next, child)
		}
	}

	p.Genomes = next
}

// Migrate copies each island's top genomes onto the next island in the ring.
// Migrants are duplicated rather than moved, so the population grows by
// islands*migrationCount individuals per migration event.
func (p *Population) Migrate() {
	if p.cfg.Islands < 2 || p.cfg.MigrationCount < 1 {
		return
	}

	islands := p.byIsland()
	migrants := make([]*Genome, 0, p.cfg.Islands*p.cfg.MigrationCount)

	for island := 0; island < p.cfg.Islands; island++ {
		members := islands[island]
		if len(members) == 0 {
			continue
		}
		sortByFitness(members)

		dest := (island + 1) % p.cfg.Islands
		for i := 0; i < p.cfg.MigrationCount && i < len(members); i++ {
			m := members[i].Copy()
			m.Island = dest
			migrants = append(migrants, m)
		}
	}

	p.Genomes = append(p.Genomes, migrants...)

	p.logger.Debug().
		Int("generation", p.Generation).
		Int("migrants", len(migrants)).
		Int("population", len(p.Genomes)).
		Msg("Migration complete")
}

// byIsland groups the population by island index.
func (p *Population) byIsland() map[int][]*Genome {
	islands := make(map[int][]*Genome, p.cfg.Islands)
	for _, g := range p.Genomes {
		islands[g.Island] = append(islands[g.Island], g)
	}
	return islands
}

// sortByFitness orders genomes best-first, breaking ties by ID for
// reproducibility.
func sortByFitness(genomes []*Genome) {
	sort.SliceStable(genomes, func(i, j int) bool {
		if genomes[i].Fitness != genomes[j].Fitness {
			return genomes[i].Fitness > genomes[j].Fitness
		}
		return genomes[i].ID.String() < genomes[j].ID.String()
	})
}
