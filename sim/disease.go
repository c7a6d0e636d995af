package sim

import (
	"fmt"
	"math"
)

// DiseaseParameters is an immutable per-step snapshot of the transition
// rates. The orchestrator replaces it wholesale between steps; it is never
// mutated mid-step.
type DiseaseParameters struct {
	TransmissionRate  float64 // per-contact infection probability per day (beta)
	IncubationRate    float64 // daily E -> I fraction (sigma)
	RecoveryRate      float64 // daily I -> R fraction (gamma)
	MortalityRate     float64 // daily I -> D fraction (mu)
	ContactMultiplier float64 // scales effective contact rate (1 = nominal)
}

// Validate rejects parameter sets the disease step cannot evaluate safely.
func (p DiseaseParameters) Validate() error {
	check := func(name string, v float64, max float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", name)
		}
		if v < 0 || v > max {
			return fmt.Errorf("%s %v outside [0,%v]", name, v, max)
		}
		return nil
	}
	if err := check("transmission rate", p.TransmissionRate, 1); err != nil {
		return err
	}
	if err := check("incubation rate", p.IncubationRate, 1); err != nil {
		return err
	}
	if err := check("recovery rate", p.RecoveryRate, 1); err != nil {
		return err
	}
	if err := check("mortality rate", p.MortalityRate, 1); err != nil {
		return err
	}
	if err := check("contact multiplier", p.ContactMultiplier, math.MaxFloat64); err != nil {
		return err
	}
	if p.RecoveryRate+p.MortalityRate > 1 {
		return fmt.Errorf("recovery rate + mortality rate %v exceeds 1", p.RecoveryRate+p.MortalityRate)
	}
	return nil
}

// scaled returns a copy with the transmission rate and contact multiplier
// scaled by the given factors. Used by the policy engine to derive effective
// parameters from the baseline.
func (p DiseaseParameters) scaled(transmission, contact float64) DiseaseParameters {
	out := p
	out.TransmissionRate *= transmission
	out.ContactMultiplier *= contact
	return out
}

// AdvanceDisease computes a region's next-day compartment vector. It is a
// pure function of its inputs, safe for concurrent invocation across regions.
//
// Staged transfers, all floored to whole individuals and computed against the
// same pre-step vector:
//
//	S -> E: floor(S * transmission * contact * I / living)
//	E -> I: floor(E * incubation)
//	I -> D: floor(I * mortality)
//	I -> R: floor(I * recovery), capped at I minus the day's deaths
//
// Deaths take precedence over recoveries when both drain Infectious, so the
// compartment can never go negative. The Deceased bucket stays in the vector,
// making the region total invariant across the step.
func AdvanceDisease(c Compartments, p DiseaseParameters) (Compartments, error) {
	if !c.NonNegative() {
		return c, fmt.Errorf("input compartments contain a negative count: %v", c)
	}
	if err := p.Validate(); err != nil {
		return c, err
	}

	next := c
	living := c.Living()

	// No Infectious means no transmission regardless of Susceptible size;
	// Exposed alone still progresses toward Infectious.
	if living > 0 && c[Infectious] > 0 {
		force := p.TransmissionRate * p.ContactMultiplier * float64(c[Infectious]) / float64(living)
		newExposed, err := floorCount(force * float64(c[Susceptible]))
		if err != nil {
			return c, fmt.Errorf("S->E transfer: %w", err)
		}
		if newExposed > c[Susceptible] {
			newExposed = c[Susceptible]
		}
		next[Susceptible] -= newExposed
		next[Exposed] += newExposed
	}

	newInfectious, err := floorCount(p.IncubationRate * float64(c[Exposed]))
	if err != nil {
		return c, fmt.Errorf("E->I transfer: %w", err)
	}
	if newInfectious > c[Exposed] {
		newInfectious = c[Exposed]
	}
	next[Exposed] -= newInfectious
	next[Infectious] += newInfectious

	deaths, err := floorCount(p.MortalityRate * float64(c[Infectious]))
	if err != nil {
		return c, fmt.Errorf("I->D transfer: %w", err)
	}
	if deaths > c[Infectious] {
		deaths = c[Infectious]
	}
	recoveries, err := floorCount(p.RecoveryRate * float64(c[Infectious]))
	if err != nil {
		return c, fmt.Errorf("I->R transfer: %w", err)
	}
	if recoveries > c[Infectious]-deaths {
		recoveries = c[Infectious] - deaths
	}
	next[Infectious] -= deaths + recoveries
	next[Deceased] += deaths
	next[Recovered] += recoveries

	if !next.NonNegative() {
		return c, fmt.Errorf("disease step produced a negative count: %v", next)
	}
	if next.Total() != c.Total() {
		return c, fmt.Errorf("disease step changed region total: %d -> %d", c.Total(), next.Total())
	}
	return next, nil
}

// floorCount converts an expected fractional transfer into a whole-individual
// count, rejecting non-finite intermediates.
func floorCount(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite transfer %v", v)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative transfer %v", v)
	}
	return int64(math.Floor(v)), nil
}
