package sim

// StateView is the read-only projection of simulation state handed to
// trigger predicates. Engines evaluate against it and return proposed
// transitions; they never touch the orchestrator's regions directly.
type StateView struct {
	Day int

	infectious      map[string]int64
	living          map[string]int64
	totalInfectious int64
	totalLiving     int64
}

func newStateView(day int, regions []*Region) *StateView {
	v := &StateView{
		Day:        day,
		infectious: make(map[string]int64, len(regions)),
		living:     make(map[string]int64, len(regions)),
	}
	for _, r := range regions {
		inf := r.Compartments[Infectious]
		liv := r.Compartments.Living()
		v.infectious[r.ID] = inf
		v.living[r.ID] = liv
		v.totalInfectious += inf
		v.totalLiving += liv
	}
	return v
}

// Infectious returns the Infectious count for one region, or the global
// count when regionID is empty.
func (v *StateView) Infectious(regionID string) int64 {
	if regionID == "" {
		return v.totalInfectious
	}
	return v.infectious[regionID]
}

// InfectedFraction returns Infectious/living for one region (global when
// regionID is empty). Zero when nobody is alive.
func (v *StateView) InfectedFraction(regionID string) float64 {
	inf, liv := v.totalInfectious, v.totalLiving
	if regionID != "" {
		inf, liv = v.infectious[regionID], v.living[regionID]
	}
	if liv <= 0 {
		return 0
	}
	return float64(inf) / float64(liv)
}
