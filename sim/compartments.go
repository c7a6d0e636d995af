package sim

import "fmt"

// Compartment indexes one disease-state bucket in a region's compartment vector.
type Compartment int

const (
	Susceptible Compartment = iota
	Exposed
	Infectious
	Recovered
	Deceased
	NumCompartments
)

// CompartmentNone marks the absent side of a one-sided shift
// (population injected from, or removed to, outside the simulation).
const CompartmentNone Compartment = -1

var compartmentNames = [NumCompartments]string{"S", "E", "I", "R", "D"}

func (c Compartment) String() string {
	if c >= 0 && c < NumCompartments {
		return compartmentNames[c]
	}
	return fmt.Sprintf("Compartment(%d)", int(c))
}

// ParseCompartment maps a scenario-file label ("S", "E", "I", "R", "D")
// to a Compartment. The empty string means CompartmentNone.
func ParseCompartment(s string) (Compartment, error) {
	if s == "" {
		return CompartmentNone, nil
	}
	for i, name := range compartmentNames {
		if s == name {
			return Compartment(i), nil
		}
	}
	return CompartmentNone, fmt.Errorf("unknown compartment %q", s)
}

// Compartments is one region's compartment vector. Counts are discrete and
// must stay non-negative; the Deceased bucket is retained in the vector so
// that death does not change a region's total.
type Compartments [NumCompartments]int64

// Total returns the sum over all compartments, Deceased included.
func (c Compartments) Total() int64 {
	var sum int64
	for _, v := range c {
		sum += v
	}
	return sum
}

// Living returns the population participating in contact dynamics
// (everything except Deceased).
func (c Compartments) Living() int64 {
	return c.Total() - c[Deceased]
}

// NonNegative reports whether every compartment count is >= 0.
func (c Compartments) NonNegative() bool {
	for _, v := range c {
		if v < 0 {
			return false
		}
	}
	return true
}

// Region is one subpopulation unit. Migration and parallel disease
// computation both operate at this granularity.
type Region struct {
	ID           string
	Compartments Compartments
	// Overrides, when non-nil, replaces the global baseline parameters for
	// this region. Active policy scales still apply on top.
	Overrides *DiseaseParameters
}

// Clone returns an independent copy of the region.
func (r *Region) Clone() *Region {
	out := &Region{ID: r.ID, Compartments: r.Compartments}
	if r.Overrides != nil {
		p := *r.Overrides
		out.Overrides = &p
	}
	return out
}

func cloneRegions(regions []*Region) []*Region {
	out := make([]*Region, len(regions))
	for i, r := range regions {
		out[i] = r.Clone()
	}
	return out
}

// CompartmentShift moves Count individuals between compartments of a region.
// From == CompartmentNone injects new population into To; To == CompartmentNone
// removes population from From. Two-sided shifts conserve the region total.
type CompartmentShift struct {
	Region string
	From   Compartment
	To     Compartment
	Count  int64
}

// apply executes the shift against the target region, clamping removals to
// what the source compartment holds. It returns the net change to the global
// population total (zero for two-sided shifts).
func (s CompartmentShift) apply(regions []*Region) (int64, error) {
	var target *Region
	for _, r := range regions {
		if r.ID == s.Region {
			target = r
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("shift references unknown region %q", s.Region)
	}
	count := s.Count
	if s.From != CompartmentNone {
		if have := target.Compartments[s.From]; count > have {
			count = have
		}
		target.Compartments[s.From] -= count
	}
	if s.To != CompartmentNone {
		target.Compartments[s.To] += count
	}
	switch {
	case s.From == CompartmentNone && s.To != CompartmentNone:
		return count, nil
	case s.To == CompartmentNone && s.From != CompartmentNone:
		return -count, nil
	}
	return 0, nil
}
