package sim

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outbreak-sim/outbreak-sim/sim/snapshot"
)

// outbreakParams grow an epidemic from a single seed despite whole-individual
// flooring (transmission * contact > 1 so one infectious exposes at least one
// susceptible per day).
func outbreakParams() DiseaseParameters {
	return DiseaseParameters{
		TransmissionRate:  0.9,
		IncubationRate:    1.0,
		RecoveryRate:      0.1,
		MortalityRate:     0,
		ContactMultiplier: 2.0,
	}
}

func twoRegionConfig(migrationRate float64) *Config {
	r1 := &Region{ID: "r1"}
	r1.Compartments[Susceptible] = 999
	r1.Compartments[Infectious] = 1
	r2 := &Region{ID: "r2"}
	r2.Compartments[Susceptible] = 500

	cfg := &Config{
		Run:        NewRunConfig(30, 42, 4, 0),
		Parameters: outbreakParams(),
		Regions:    []*Region{r1, r2},
	}
	if migrationRate > 0 {
		cfg.Migration = NewMigrationMatrix()
		if err := cfg.Migration.SetRate("r1", "r2", migrationRate); err != nil {
			panic(err)
		}
	}
	return cfg
}

func regionState(rec snapshot.Record, id string) snapshot.RegionState {
	for _, r := range rec.Regions {
		if r.ID == id {
			return r
		}
	}
	return snapshot.RegionState{}
}

func TestSimulator_NoMigrationNoCrossContamination(t *testing.T) {
	// Two regions, populations 1000 and 500, zero migration, one infectious
	// seed in region 1, 30-day horizon, no policies or events.
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(twoRegionConfig(0), sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, StateCompleted, s.State)

	records := sink.Records()
	require.Len(t, records, 30)
	for i, rec := range records {
		require.Equal(t, i+1, rec.Day, "snapshots must arrive in day order")

		// Region 2 stays fully Susceptible: no migration means no
		// cross-contamination.
		r2 := regionState(rec, "r2")
		require.Equal(t, int64(500), r2.Susceptible, "day %d", rec.Day)
		require.Equal(t, int64(0), r2.Exposed+r2.Infectious+r2.Recovered+r2.Deceased, "day %d", rec.Day)

		// All compartments non-negative every day.
		for _, r := range rec.Regions {
			require.GreaterOrEqual(t, r.Susceptible, int64(0), "day %d region %s", rec.Day, r.ID)
			require.GreaterOrEqual(t, r.Exposed, int64(0), "day %d region %s", rec.Day, r.ID)
			require.GreaterOrEqual(t, r.Infectious, int64(0), "day %d region %s", rec.Day, r.ID)
			require.GreaterOrEqual(t, r.Recovered, int64(0), "day %d region %s", rec.Day, r.ID)
			require.GreaterOrEqual(t, r.Deceased, int64(0), "day %d region %s", rec.Day, r.ID)
		}
		require.Equal(t, int64(1500), rec.TotalPopulation, "day %d", rec.Day)
	}

	// Susceptible in region 1 is monotonically non-increasing.
	prev := int64(1000)
	for _, rec := range records {
		s1 := regionState(rec, "r1").Susceptible
		require.LessOrEqual(t, s1, prev, "day %d", rec.Day)
		prev = s1
	}
}

func TestSimulator_MigrationCarriesInfectionAcrossRegions(t *testing.T) {
	// Same setup with a 0.01 flow from region 1 to region 2.
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(twoRegionConfig(0.01), sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	infectedDay := 0
	for _, rec := range sink.Records() {
		require.Equal(t, int64(1500), rec.TotalPopulation, "day %d", rec.Day)
		r2 := regionState(rec, "r2")
		if infectedDay == 0 && r2.Infectious > 0 {
			infectedDay = rec.Day
		}
	}
	assert.Greater(t, infectedDay, 0, "infection should reach region 2 within the horizon")
	assert.LessOrEqual(t, infectedDay, 30)
}

func richConfig(workers int) *Config {
	cfg := twoRegionConfig(0.01)
	cfg.Run.Workers = workers
	closed := 0.0
	cfg.Policies = []*Policy{
		{
			ID:       "lockdown-r1",
			Priority: 1,
			Trigger:  Trigger{Kind: TriggerInfectiousAbove, Region: "r1", Threshold: 50},
			Duration: 7,
			Effect:   PolicyEffect{ContactScale: 0.5},
		},
		{
			ID:         "borders",
			Priority:   2,
			Trigger:    Trigger{Kind: TriggerInfectedFractionAbove, Region: "r1", Fraction: 0.3},
			Deactivate: &Trigger{Kind: TriggerInfectiousBelow, Region: "r1", Threshold: 100},
			Effect:     PolicyEffect{MigrationScale: &closed},
		},
	}
	cfg.Events = []*Event{
		{ID: "variant", Kind: EventScheduled, Day: 12, Effect: EventEffect{TransmissionScale: 1.1}},
		{ID: "aid-arrival", Kind: EventProbabilistic, Probability: 0.2, Repeat: true,
			Effect: EventEffect{Shift: &CompartmentShift{Region: "r2", From: CompartmentNone, To: Susceptible, Count: 10}}},
		{ID: "vaccination", Kind: EventScheduled, Day: 5, Repeat: true,
			Effect: EventEffect{Shift: &CompartmentShift{Region: "r1", From: Susceptible, To: Recovered, Count: 15}}},
	}
	return cfg
}

func TestSimulator_BitIdenticalAcrossWorkerPoolSizes(t *testing.T) {
	run := func(workers int) []snapshot.Record {
		sink := snapshot.NewMemorySink()
		s, err := NewSimulator(richConfig(workers), sink)
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		return sink.Records()
	}

	// Same seed and configuration must produce bit-identical snapshot
	// records with 1 worker and with 8.
	assert.Equal(t, run(1), run(8))
}

func TestSimulator_SameSeedReproducible(t *testing.T) {
	run := func() []snapshot.Record {
		sink := snapshot.NewMemorySink()
		s, err := NewSimulator(richConfig(4), sink)
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		return sink.Records()
	}
	assert.Equal(t, run(), run())
}

func TestSimulator_PolicyLifecycleVisibleInSnapshots(t *testing.T) {
	cfg := twoRegionConfig(0)
	cfg.Policies = []*Policy{{
		ID:       "lockdown",
		Trigger:  Trigger{Kind: TriggerInfectiousAbove, Region: "r1", Threshold: 50},
		Duration: 5,
		Effect:   PolicyEffect{ContactScale: 0.3},
	}}
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(cfg, sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	activeDays := []int{}
	firstAbove := 0
	for _, rec := range sink.Records() {
		if firstAbove == 0 && regionState(rec, "r1").Infectious > 50 {
			firstAbove = rec.Day
		}
		if len(rec.ActivePolicies) > 0 {
			activeDays = append(activeDays, rec.Day)
		}
	}

	require.Greater(t, firstAbove, 0, "outbreak must cross the threshold")
	require.Len(t, activeDays, 5, "active for exactly its configured duration")
	assert.Equal(t, firstAbove, activeDays[0], "activates the first day the condition holds")
	for i := 1; i < len(activeDays); i++ {
		assert.Equal(t, activeDays[i-1]+1, activeDays[i], "active days are contiguous")
	}
}

func TestSimulator_ScheduledEventFiresOnItsDayOnly(t *testing.T) {
	cfg := twoRegionConfig(0)
	cfg.Events = []*Event{{
		ID:     "variant",
		Kind:   EventScheduled,
		Day:    9,
		Effect: EventEffect{TransmissionScale: 1.05},
	}}
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(cfg, sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	for _, rec := range sink.Records() {
		if rec.Day == 9 {
			assert.Equal(t, []string{"variant"}, rec.FiredEvents)
		} else {
			assert.Empty(t, rec.FiredEvents, "day %d", rec.Day)
		}
	}
}

func TestSimulator_OneSidedEventShiftAdjustsExpectedTotal(t *testing.T) {
	cfg := twoRegionConfig(0)
	cfg.Run.HorizonDays = 5
	cfg.Events = []*Event{{
		ID:     "aid-arrival",
		Kind:   EventScheduled,
		Day:    2,
		Effect: EventEffect{Shift: &CompartmentShift{Region: "r2", From: CompartmentNone, To: Susceptible, Count: 100}},
	}}
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(cfg, sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	records := sink.Records()
	assert.Equal(t, int64(1500), records[0].TotalPopulation)
	for _, rec := range records[1:] {
		assert.Equal(t, int64(1600), rec.TotalPopulation, "day %d", rec.Day)
	}
}

// failingSink accepts records until failAfter appends have happened.
type failingSink struct {
	appended  int
	failAfter int
}

func (f *failingSink) Append(snapshot.Record) error {
	if f.appended >= f.failAfter {
		return fmt.Errorf("disk full")
	}
	f.appended++
	return nil
}

func (f *failingSink) Close() error { return nil }

func TestSimulator_PersistenceFailurePreservesCommittedDay(t *testing.T) {
	cfg := twoRegionConfig(0)
	sink := &failingSink{failAfter: 3}
	s, err := NewSimulator(cfg, sink)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Day)
	assert.Equal(t, StateFailed, s.State)

	// Days 1-3 were written; the clock never advanced past them.
	assert.Equal(t, 3, s.Clock)

	// The committed-but-unwritten day stays available for a caller retry.
	require.NotNil(t, s.LastSnapshot())
	assert.Equal(t, 4, s.LastSnapshot().Day)
}

func TestSimulator_CancellationHonoredAtDayBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(twoRegionConfig(0), sink)
	require.NoError(t, err)

	err = s.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State)
	assert.Empty(t, sink.Records(), "no partial day may be committed")
}

func TestSimulator_CannotRunTwice(t *testing.T) {
	s, err := NewSimulator(twoRegionConfig(0), snapshot.NewMemorySink())
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Error(t, s.Run(context.Background()))
}

func TestSimulator_RejectsInvalidConfig(t *testing.T) {
	cfg := twoRegionConfig(0)
	cfg.Run.HorizonDays = 0
	_, err := NewSimulator(cfg, snapshot.NewMemorySink())
	var se *ScenarioError
	require.ErrorAs(t, err, &se)
}

func TestSimulator_MetricsAggregateCommittedDays(t *testing.T) {
	sink := snapshot.NewMemorySink()
	s, err := NewSimulator(twoRegionConfig(0), sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 30, s.Metrics.Days)
	assert.Greater(t, s.Metrics.PeakInfectious, int64(1), "outbreak must grow past the seed")
	assert.Greater(t, s.Metrics.AttackRate(), 0.0)
	assert.Len(t, s.Metrics.DailyInfectious, 30)
}
