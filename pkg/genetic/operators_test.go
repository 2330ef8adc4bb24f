package genetic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossoverIdenticalParents(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	p1 := NewRandomGenome(space, rng, 0, 0)
	p2 := p1.Copy()

	child := Crossover(space, p1, p2, rng, 1)

	// Blending two identical values yields the value itself, modulo snapping.
	for _, key := range space.Keys() {
		assert.InDelta(t, p1.Config[key], child.Config[key], 1e-9, "key %s", key)
	}

	assert.NotEqual(t, p1.ID, child.ID)
	assert.Equal(t, []string(nil), child.Mutations)
	assert.Equal(t, 1, child.Generation)
	require.Len(t, child.Parents, 2)
	assert.Equal(t, p1.ID, child.Parents[0])
	assert.Equal(t, p2.ID, child.Parents[1])
	assert.False(t, child.Evaluated())
}

func TestCrossoverStaysInBounds(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	for trial := 0; trial < 50; trial++ {
		p1 := NewRandomGenome(space, rng, 0, 0)
		p2 := NewRandomGenome(space, rng, 0, 0)

		child := Crossover(space, p1, p2, rng, 1)

		for _, key := range space.Keys() {
			spec, _ := space.Spec(key)
			v := child.Config[key]
			assert.GreaterOrEqual(t, v, spec.Min, "key %s", key)
			assert.LessOrEqual(t, v, spec.Max, "key %s", key)
		}
		assert.InDelta(t, 1.0, weightSum(child.Config), 1e-6)
	}
}

func TestCrossoverInheritsIsland(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	p1 := NewRandomGenome(space, rng, 0, 3)
	p2 := NewRandomGenome(space, rng, 0, 1)

	child := Crossover(space, p1, p2, rng, 1)
	assert.Equal(t, 3, child.Island, "child stays on the first parent's island")
}

func TestMutateLogsOnlyRealChanges(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	g := NewRandomGenome(space, rng, 0, 0)
	before := map[string]float64{}
	for k, v := range g.Config {
		before[k] = v
	}

	// Rate 1 with a strong adaptive factor guarantees mutation attempts.
	Mutate(space, g, 1.0, 1.0, rng)

	changed := 0
	for _, key := range space.Keys() {
		if g.Config[key] != before[key] {
			changed++
		}
	}
	// Weight renormalization may shift weight genes beyond the logged ones,
	// so the log is a lower bound on non-weight changes only.
	assert.NotEmpty(t, g.Mutations, "full-rate mutation must change something")

	for _, entry := range g.Mutations {
		assert.Contains(t, entry, " -> ", "log entry %q", entry)
		key := strings.SplitN(entry, ":", 2)[0]
		_, ok := space.Spec(key)
		assert.True(t, ok, "log names a real gene: %q", entry)
	}

	assert.Greater(t, changed, 0)
	assert.False(t, g.Evaluated(), "mutation resets evaluation state")
}

func TestMutateZeroRateIsNoop(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	g := NewRandomGenome(space, rng, 0, 0)
	g.Fitness = 55
	before := map[string]float64{}
	for k, v := range g.Config {
		before[k] = v
	}

	Mutate(space, g, 0, 1.0, rng)

	assert.Equal(t, before, g.Config)
	assert.Empty(t, g.Mutations)
	assert.Equal(t, 55.0, g.Fitness, "an untouched genome keeps its fitness")
}

func TestMutateStaysInBounds(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	for trial := 0; trial < 50; trial++ {
		g := NewRandomGenome(space, rng, 0, 0)
		Mutate(space, g, 1.0, 2.0, rng)

		for _, key := range space.Keys() {
			spec, _ := space.Spec(key)
			v := g.Config[key]
			assert.GreaterOrEqual(t, v, spec.Min, "key %s", key)
			assert.LessOrEqual(t, v, spec.Max, "key %s", key)
		}
		assert.InDelta(t, 1.0, weightSum(g.Config), 1e-6)
	}
}

func TestCloneResetsEvaluation(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	g := NewRandomGenome(space, rng, 0, 2)
	g.Fitness = 88

	child := g.Clone(5)

	assert.Equal(t, g.Config, child.Config)
	assert.NotEqual(t, g.ID, child.ID)
	assert.Zero(t, child.Fitness)
	assert.Equal(t, 5, child.Generation)
	assert.Equal(t, 2, child.Island)
	require.Len(t, child.Parents, 1)
	assert.Equal(t, g.ID, child.Parents[0])
}

func TestCopyPreservesEvaluation(t *testing.T) {
	space := DefaultSpace()
	rng := testRNG()

	g := NewRandomGenome(space, rng, 0, 0)
	g.Fitness = 42

	dup := g.Copy()
	require.Equal(t, g.ID, dup.ID)
	assert.Equal(t, 42.0, dup.Fitness)

	// The copy owns its own gene map.
	dup.Config[space.Keys()[0]] = -999
	assert.NotEqual(t, g.Config[space.Keys()[0]], dup.Config[space.Keys()[0]])
}
