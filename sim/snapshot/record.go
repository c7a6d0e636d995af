// Package snapshot holds the immutable per-day records the engine hands to
// persistence, plus sink implementations. It stores pure data types and has
// no dependency on sim/.
package snapshot

// RegionState is one region's compartment counts at the end of a day.
type RegionState struct {
	ID          string
	Susceptible int64
	Exposed     int64
	Infectious  int64
	Recovered   int64
	Deceased    int64
}

// Total returns the region's population including Deceased.
func (r RegionState) Total() int64 {
	return r.Susceptible + r.Exposed + r.Infectious + r.Recovered + r.Deceased
}

// Record is the committed state of the simulation at the end of one day.
// Created once per step and never mutated afterwards.
type Record struct {
	Day             int
	Regions         []RegionState
	ActivePolicies  []string
	FiredEvents     []string
	TotalPopulation int64
}
