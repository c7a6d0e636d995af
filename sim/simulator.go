package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/outbreak-sim/outbreak-sim/sim/snapshot"
)

// RunState is the orchestrator's state machine.
type RunState string

const (
	StateInitializing RunState = "initializing"
	StateStepRunning  RunState = "step-running"
	StateCompleted    RunState = "completed"
	StateFailed       RunState = "failed"
)

// Simulator owns all mutable simulation state and sequences the per-day
// phases: concurrent disease advance, migration, policy evaluation, event
// injection, snapshot commit, clock advance. Engines and workers only ever
// see immutable views or working copies and return deltas; between phases
// the orchestrating goroutine is the only writer.
type Simulator struct {
	Clock   int // last committed day (0 before the first)
	Horizon int
	State   RunState

	Regions []*Region
	// Baseline is the parameter snapshot policies scale from. Only
	// parameter-shock events mutate it (permanently).
	Baseline  DiseaseParameters
	Policies  *PolicyEngine
	Events    *EventSystem
	Migration *MigrationEngine
	Pool      *RegionWorkerPool
	RNG       *PartitionedRNG
	Sink      snapshot.Sink
	Metrics   *Metrics

	// expectedTotal is the conservation ledger: the global population total
	// every phase must preserve, adjusted only by one-sided event shifts.
	expectedTotal int64
	lastRecord    *snapshot.Record
}

// NewSimulator validates the configuration and builds a run in the
// Initializing state. A nil sink keeps snapshots in memory only.
func NewSimulator(cfg *Config, sink snapshot.Sink) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = snapshot.NewMemorySink()
	}

	regions := cloneRegions(cfg.Regions)
	var total, living int64
	for _, r := range regions {
		total += r.Compartments.Total()
		living += r.Compartments.Living()
	}

	return &Simulator{
		Horizon:       cfg.Run.HorizonDays,
		State:         StateInitializing,
		Regions:       regions,
		Baseline:      cfg.Parameters,
		Policies:      NewPolicyEngine(cfg.Policies),
		Events:        NewEventSystem(cfg.Events),
		Migration:     NewMigrationEngine(cfg.Migration),
		Pool:          NewRegionWorkerPool(cfg.Run.Workers, cfg.Run.StepTimeout),
		RNG:           NewPartitionedRNG(NewSimulationKey(cfg.Run.Seed)),
		Sink:          sink,
		Metrics:       NewMetrics(living),
		expectedTotal: total,
	}, nil
}

// Run advances the simulation day by day until the horizon, an error, or
// context cancellation. Cancellation is honored at day boundaries only;
// a day in flight always completes or fails atomically.
func (s *Simulator) Run(ctx context.Context) error {
	if s.State != StateInitializing {
		return fmt.Errorf("simulator cannot run from state %q", s.State)
	}
	s.State = StateStepRunning
	for day := 1; day <= s.Horizon; day++ {
		if err := ctx.Err(); err != nil {
			s.State = StateFailed
			return fmt.Errorf("run aborted before day %d: %w", day, err)
		}
		if err := s.step(ctx, day); err != nil {
			s.State = StateFailed
			return err
		}
		s.Clock = day
	}
	s.State = StateCompleted
	logrus.Infof("[day %03d] simulation completed", s.Clock)
	return nil
}

// LastSnapshot returns the most recently built record. After a
// PersistenceError it holds the committed day whose write failed, so the
// caller can retry the append without re-simulating.
func (s *Simulator) LastSnapshot() *snapshot.Record {
	return s.lastRecord
}

// step executes one day's phase sequence against a working copy of the
// regions. The copy is committed only after every phase and the conservation
// audit succeed; on any error the partial day is discarded.
func (s *Simulator) step(ctx context.Context, day int) error {
	working := cloneRegions(s.Regions)

	// Phase 1: disease advance, concurrent per region behind a barrier.
	logrus.Infof("[day %03d] disease phase across %d regions", day, len(working))
	results, err := s.Pool.Evaluate(ctx, day, working, s.effectiveParameters())
	if err != nil {
		return err
	}
	for _, r := range working {
		next, ok := results[r.ID]
		if !ok {
			return &RegionComputationError{Region: r.ID, Day: day, Err: fmt.Errorf("worker returned no result")}
		}
		r.Compartments = next
	}

	// Phase 2: migration, a sequential reduction over all regions.
	logrus.Infof("[day %03d] migration phase", day)
	if err := s.Migration.Apply(day, working, s.Policies.MigrationScale()); err != nil {
		return err
	}

	// Phase 3: policy evaluation against the post-migration view. Parameter
	// scales take effect from the next day's disease phase.
	view := newStateView(day, working)
	s.Policies.Evaluate(view)
	for _, adj := range s.Policies.ActiveAdjustments() {
		if _, err := adj.apply(working); err != nil {
			return fmt.Errorf("day %d: policy adjustment: %w", day, err)
		}
	}

	// Phase 4: event injection in deterministic order.
	fired := s.Events.Fire(day, s.RNG.ForSubsystem(SubsystemEvents))
	firedIDs := make([]string, 0, len(fired))
	for _, ev := range fired {
		firedIDs = append(firedIDs, ev.ID)
		if shift := ev.Effect.Shift; shift != nil {
			delta, err := shift.apply(working)
			if err != nil {
				return fmt.Errorf("day %d: event %q: %w", day, ev.ID, err)
			}
			s.expectedTotal += delta
		}
		if scale := ev.Effect.TransmissionScale; scale > 0 {
			s.Baseline.TransmissionRate *= scale
			if s.Baseline.TransmissionRate > 1 {
				s.Baseline.TransmissionRate = 1
			}
			logrus.Infof("[day %03d] event %q set baseline transmission to %.4f",
				day, ev.ID, s.Baseline.TransmissionRate)
		}
	}

	// Conservation audit before anything is committed.
	var total int64
	for _, r := range working {
		total += r.Compartments.Total()
	}
	if total != s.expectedTotal {
		return &ConservationError{Day: day, Phase: "commit", Want: s.expectedTotal, Got: total}
	}

	// Commit, then hand the snapshot to the sink synchronously before the
	// clock advances.
	s.Regions = working
	rec := s.buildRecord(day, firedIDs)
	s.lastRecord = &rec
	if err := s.Sink.Append(rec); err != nil {
		return &PersistenceError{Day: day, Err: err}
	}
	s.Metrics.Observe(rec)
	return nil
}

// effectiveParameters resolves the per-region parameters for the coming
// disease phase: the region override (or the baseline) scaled by all active
// policies.
func (s *Simulator) effectiveParameters() map[string]DiseaseParameters {
	global := s.Policies.EffectiveParameters(s.Baseline)
	out := make(map[string]DiseaseParameters, len(s.Regions))
	for _, r := range s.Regions {
		if r.Overrides != nil {
			out[r.ID] = s.Policies.EffectiveParameters(*r.Overrides)
		} else {
			out[r.ID] = global
		}
	}
	return out
}

func (s *Simulator) buildRecord(day int, firedIDs []string) snapshot.Record {
	regions := make([]snapshot.RegionState, len(s.Regions))
	var total int64
	for i, r := range s.Regions {
		regions[i] = snapshot.RegionState{
			ID:          r.ID,
			Susceptible: r.Compartments[Susceptible],
			Exposed:     r.Compartments[Exposed],
			Infectious:  r.Compartments[Infectious],
			Recovered:   r.Compartments[Recovered],
			Deceased:    r.Compartments[Deceased],
		}
		total += r.Compartments.Total()
	}
	return snapshot.Record{
		Day:             day,
		Regions:         regions,
		ActivePolicies:  s.Policies.ActiveIDs(),
		FiredEvents:     firedIDs,
		TotalPopulation: total,
	}
}
