package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoRegions(pop1, inf1, pop2, inf2 int64) []*Region {
	r1 := &Region{ID: "r1"}
	r1.Compartments[Susceptible] = pop1 - inf1
	r1.Compartments[Infectious] = inf1
	r2 := &Region{ID: "r2"}
	r2.Compartments[Susceptible] = pop2 - inf2
	r2.Compartments[Infectious] = inf2
	return []*Region{r1, r2}
}

func TestMigrationEngine_ConservesTotalPopulation(t *testing.T) {
	// GIVEN two regions with bidirectional flow
	regions := twoRegions(1000, 100, 500, 0)
	matrix := NewMigrationMatrix()
	require.NoError(t, matrix.SetRate("r1", "r2", 0.05))
	require.NoError(t, matrix.SetRate("r2", "r1", 0.02))
	engine := NewMigrationEngine(matrix)

	// WHEN migration resolves
	require.NoError(t, engine.Apply(1, regions, 1))

	// THEN nobody is created or destroyed
	var total int64
	for _, r := range regions {
		total += r.Compartments.Total()
		assert.True(t, r.Compartments.NonNegative())
	}
	assert.Equal(t, int64(1500), total)
}

func TestMigrationEngine_MovesPerCompartmentCounts(t *testing.T) {
	regions := twoRegions(1000, 100, 500, 0)
	matrix := NewMigrationMatrix()
	require.NoError(t, matrix.SetRate("r1", "r2", 0.1))
	engine := NewMigrationEngine(matrix)

	require.NoError(t, engine.Apply(1, regions, 1))

	// floor(0.1 * 900) = 90 Susceptible and floor(0.1 * 100) = 10 Infectious move
	assert.Equal(t, int64(810), regions[0].Compartments[Susceptible])
	assert.Equal(t, int64(90), regions[0].Compartments[Infectious])
	assert.Equal(t, int64(590), regions[1].Compartments[Susceptible])
	assert.Equal(t, int64(10), regions[1].Compartments[Infectious])
}

func TestMigrationEngine_DeceasedNeverMigrate(t *testing.T) {
	regions := twoRegions(1000, 0, 500, 0)
	regions[0].Compartments[Deceased] = 50
	matrix := NewMigrationMatrix()
	require.NoError(t, matrix.SetRate("r1", "r2", 0.5))
	engine := NewMigrationEngine(matrix)

	require.NoError(t, engine.Apply(1, regions, 1))

	assert.Equal(t, int64(50), regions[0].Compartments[Deceased])
	assert.Equal(t, int64(0), regions[1].Compartments[Deceased])
}

func TestMigrationEngine_OrderIndependent(t *testing.T) {
	// GIVEN the same world with the region slice in two different orders
	build := func(reverse bool) []*Region {
		regions := twoRegions(1000, 100, 500, 20)
		if reverse {
			regions[0], regions[1] = regions[1], regions[0]
		}
		return regions
	}
	matrix := NewMigrationMatrix()
	require.NoError(t, matrix.SetRate("r1", "r2", 0.05))
	require.NoError(t, matrix.SetRate("r2", "r1", 0.03))
	engine := NewMigrationEngine(matrix)

	forward := build(false)
	backward := build(true)
	require.NoError(t, engine.Apply(1, forward, 1))
	require.NoError(t, engine.Apply(1, backward, 1))

	// THEN flows computed from the pre-migration snapshot give the same
	// result regardless of processing order
	byID := map[string]Compartments{}
	for _, r := range backward {
		byID[r.ID] = r.Compartments
	}
	for _, r := range forward {
		assert.Equal(t, byID[r.ID], r.Compartments, "region %s", r.ID)
	}
}

func TestMigrationEngine_ScaleThrottlesFlows(t *testing.T) {
	// GIVEN an active border-closure scale of 0
	regions := twoRegions(1000, 100, 500, 0)
	matrix := NewMigrationMatrix()
	require.NoError(t, matrix.SetRate("r1", "r2", 0.1))
	engine := NewMigrationEngine(matrix)

	before := regions[0].Compartments
	require.NoError(t, engine.Apply(1, regions, 0))

	// THEN nothing moves
	assert.Equal(t, before, regions[0].Compartments)
}

func TestMigrationMatrix_RejectsInvalidRates(t *testing.T) {
	matrix := NewMigrationMatrix()
	assert.Error(t, matrix.SetRate("a", "a", 0.1), "self flow")
	assert.Error(t, matrix.SetRate("a", "b", -0.1), "negative rate")
	assert.Error(t, matrix.SetRate("a", "b", 1.5), "rate above 1")
}

func TestMigrationEngine_NilMatrixIsNoMigration(t *testing.T) {
	regions := twoRegions(1000, 100, 500, 0)
	engine := NewMigrationEngine(nil)
	before := regions[0].Compartments

	require.NoError(t, engine.Apply(1, regions, 1))
	assert.Equal(t, before, regions[0].Compartments)
}
