package sim

import "fmt"

// MigrationMatrix maps ordered (origin, destination) region pairs to a daily
// flow rate in [0,1]: the fraction of each mobile compartment that moves.
// Deceased never migrate.
type MigrationMatrix struct {
	rates map[string]map[string]float64
}

// NewMigrationMatrix creates an empty matrix (no flows).
func NewMigrationMatrix() *MigrationMatrix {
	return &MigrationMatrix{rates: make(map[string]map[string]float64)}
}

// SetRate registers the flow rate for one ordered region pair.
func (m *MigrationMatrix) SetRate(from, to string, rate float64) error {
	if from == to {
		return fmt.Errorf("self-flow %q -> %q", from, to)
	}
	if rate < 0 || rate > 1 {
		return fmt.Errorf("flow rate %v outside [0,1]", rate)
	}
	if m.rates[from] == nil {
		m.rates[from] = make(map[string]float64)
	}
	m.rates[from][to] = rate
	return nil
}

// Rate returns the flow rate for one ordered region pair (0 if unset).
func (m *MigrationMatrix) Rate(from, to string) float64 {
	return m.rates[from][to]
}

// OutflowSum returns the total outbound rate configured for a region.
// Validation requires it to stay <= 1 so that floored per-destination flows
// can never drain a compartment below zero.
func (m *MigrationMatrix) OutflowSum(from string) float64 {
	var sum float64
	for _, r := range m.rates[from] {
		sum += r
	}
	return sum
}

// MigrationEngine resolves cross-region flows as a single atomic reduction:
// every flow is computed from the same pre-migration snapshot and the
// accumulated net deltas are applied once, so no region ever observes a
// partially-updated neighbor and pair processing order cannot affect the
// result.
type MigrationEngine struct {
	Matrix *MigrationMatrix
}

// NewMigrationEngine wraps a flow matrix. A nil matrix means no migration.
func NewMigrationEngine(matrix *MigrationMatrix) *MigrationEngine {
	if matrix == nil {
		matrix = NewMigrationMatrix()
	}
	return &MigrationEngine{Matrix: matrix}
}

// Apply moves individuals between regions in place. scale multiplies every
// flow rate (active policies use it to throttle or close borders; 1 leaves
// the matrix untouched). The global population total is invariant across the
// call; any violation is a ConservationError.
func (e *MigrationEngine) Apply(day int, regions []*Region, scale float64) error {
	if scale < 0 {
		scale = 0
	}
	before := make(map[string]Compartments, len(regions))
	var total int64
	for _, r := range regions {
		before[r.ID] = r.Compartments
		total += r.Compartments.Total()
	}

	deltas := make(map[string]Compartments, len(regions))
	for _, origin := range regions {
		snap := before[origin.ID]
		moved := Compartments{} // cumulative outflow per compartment
		for _, dest := range regions {
			rate := e.Matrix.Rate(origin.ID, dest.ID) * scale
			if rate <= 0 {
				continue
			}
			for c := Susceptible; c < Deceased; c++ {
				n, err := floorCount(rate * float64(snap[c]))
				if err != nil {
					return &RegionComputationError{Region: origin.ID, Day: day,
						Err: fmt.Errorf("migration flow to %q: %w", dest.ID, err)}
				}
				// Outflow never exceeds the pre-migration count even if
				// configured rates were somehow over-committed.
				if moved[c]+n > snap[c] {
					n = snap[c] - moved[c]
				}
				moved[c] += n
				od := deltas[origin.ID]
				od[c] -= n
				deltas[origin.ID] = od
				dd := deltas[dest.ID]
				dd[c] += n
				deltas[dest.ID] = dd
			}
		}
	}

	var after int64
	for _, r := range regions {
		d := deltas[r.ID]
		for c := Compartment(0); c < NumCompartments; c++ {
			r.Compartments[c] += d[c]
		}
		if !r.Compartments.NonNegative() {
			return &RegionComputationError{Region: r.ID, Day: day,
				Err: fmt.Errorf("migration produced a negative count: %v", r.Compartments)}
		}
		after += r.Compartments.Total()
	}
	if after != total {
		return &ConservationError{Day: day, Phase: "migration", Want: total, Got: after}
	}
	return nil
}
