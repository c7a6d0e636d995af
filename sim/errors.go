package sim

import "fmt"

// ScenarioError reports malformed or contradictory configuration. It is
// surfaced by NewSimulator before the first step runs.
type ScenarioError struct {
	Field string
	Msg   string
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario: %s: %s", e.Field, e.Msg)
}

// RegionComputationError reports that a worker produced an invalid
// compartment vector for one region. Fatal to the run.
type RegionComputationError struct {
	Region string
	Day    int
	Err    error
}

func (e *RegionComputationError) Error() string {
	return fmt.Sprintf("day %d: region %q: %v", e.Day, e.Region, e.Err)
}

func (e *RegionComputationError) Unwrap() error { return e.Err }

// ConservationError reports a broken population invariant. It indicates a
// modeling bug and is never retried.
type ConservationError struct {
	Day   int
	Phase string
	Want  int64
	Got   int64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("day %d: %s phase broke population conservation: want %d, got %d",
		e.Day, e.Phase, e.Want, e.Got)
}

// PersistenceError reports that the snapshot sink rejected a committed day.
// The day's in-memory state is preserved so the caller can retry the write.
type PersistenceError struct {
	Day int
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("day %d: snapshot write failed: %v", e.Day, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
