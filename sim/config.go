package sim

import (
	"fmt"
	"time"
)

// RunConfig groups the execution parameters of one run.
type RunConfig struct {
	HorizonDays int           // number of simulated days
	Seed        int64         // master seed for all random streams
	Workers     int           // disease-phase worker pool size
	StepTimeout time.Duration // per-step deadline for the disease phase (0 = none)
}

// NewRunConfig creates a RunConfig.
func NewRunConfig(horizonDays int, seed int64, workers int, stepTimeout time.Duration) RunConfig {
	return RunConfig{
		HorizonDays: horizonDays,
		Seed:        seed,
		Workers:     workers,
		StepTimeout: stepTimeout,
	}
}

// Config is the validated parameter bundle a Simulator is built from.
type Config struct {
	Run        RunConfig
	Parameters DiseaseParameters
	Regions    []*Region
	Migration  *MigrationMatrix
	Policies   []*Policy
	Events     []*Event
}

// Validate checks the bundle before the first step runs. Every failure is a
// *ScenarioError naming the offending field.
func (c *Config) Validate() error {
	if c.Run.HorizonDays < 1 {
		return &ScenarioError{Field: "horizon", Msg: fmt.Sprintf("must be >= 1, got %d", c.Run.HorizonDays)}
	}
	if len(c.Regions) == 0 {
		return &ScenarioError{Field: "regions", Msg: "at least one region is required"}
	}
	if err := c.Parameters.Validate(); err != nil {
		return &ScenarioError{Field: "parameters", Msg: err.Error()}
	}

	ids := make(map[string]bool, len(c.Regions))
	for _, r := range c.Regions {
		if r.ID == "" {
			return &ScenarioError{Field: "regions", Msg: "region id must not be empty"}
		}
		if ids[r.ID] {
			return &ScenarioError{Field: "regions", Msg: fmt.Sprintf("duplicate region id %q", r.ID)}
		}
		ids[r.ID] = true
		if !r.Compartments.NonNegative() {
			return &ScenarioError{Field: "regions", Msg: fmt.Sprintf("region %q has a negative compartment", r.ID)}
		}
		if r.Overrides != nil {
			if err := r.Overrides.Validate(); err != nil {
				return &ScenarioError{Field: "regions", Msg: fmt.Sprintf("region %q overrides: %v", r.ID, err)}
			}
		}
	}

	if c.Migration != nil {
		for from, dests := range c.Migration.rates {
			if !ids[from] {
				return &ScenarioError{Field: "migration", Msg: fmt.Sprintf("unknown origin region %q", from)}
			}
			for to := range dests {
				if !ids[to] {
					return &ScenarioError{Field: "migration", Msg: fmt.Sprintf("unknown destination region %q", to)}
				}
			}
			// With per-origin outflow <= 1 the floored per-destination
			// flows can never exceed a compartment's pre-migration count.
			if sum := c.Migration.OutflowSum(from); sum > 1 {
				return &ScenarioError{Field: "migration", Msg: fmt.Sprintf("outflow rates from %q sum to %v > 1", from, sum)}
			}
		}
	}

	policyIDs := make(map[string]bool, len(c.Policies))
	for _, p := range c.Policies {
		if p.ID == "" {
			return &ScenarioError{Field: "policies", Msg: "policy id must not be empty"}
		}
		if policyIDs[p.ID] {
			return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("duplicate policy id %q", p.ID)}
		}
		policyIDs[p.ID] = true
		if err := p.Trigger.Validate(); err != nil {
			return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q trigger: %v", p.ID, err)}
		}
		if p.Trigger.Region != "" && !ids[p.Trigger.Region] {
			return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q trigger references unknown region %q", p.ID, p.Trigger.Region)}
		}
		if p.Deactivate != nil {
			if err := p.Deactivate.Validate(); err != nil {
				return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q deactivation: %v", p.ID, err)}
			}
			if p.Deactivate.Region != "" && !ids[p.Deactivate.Region] {
				return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q deactivation references unknown region %q", p.ID, p.Deactivate.Region)}
			}
		}
		if p.Duration < 0 {
			return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q duration is negative", p.ID)}
		}
		if adj := p.Effect.Adjust; adj != nil {
			if !ids[adj.Region] {
				return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q adjustment references unknown region %q", p.ID, adj.Region)}
			}
			// Policy adjustments must conserve population; one-sided shifts
			// are an event-only capability.
			if adj.From == CompartmentNone || adj.To == CompartmentNone {
				return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q adjustment must name both compartments", p.ID)}
			}
			if adj.Count < 0 {
				return &ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q adjustment count is negative", p.ID)}
			}
		}
	}

	eventIDs := make(map[string]bool, len(c.Events))
	for _, ev := range c.Events {
		if ev.ID == "" {
			return &ScenarioError{Field: "events", Msg: "event id must not be empty"}
		}
		if eventIDs[ev.ID] {
			return &ScenarioError{Field: "events", Msg: fmt.Sprintf("duplicate event id %q", ev.ID)}
		}
		eventIDs[ev.ID] = true
		if err := ev.Validate(); err != nil {
			return &ScenarioError{Field: "events", Msg: fmt.Sprintf("event %q: %v", ev.ID, err)}
		}
		if shift := ev.Effect.Shift; shift != nil {
			if !ids[shift.Region] {
				return &ScenarioError{Field: "events", Msg: fmt.Sprintf("event %q shift references unknown region %q", ev.ID, shift.Region)}
			}
			if shift.From == CompartmentNone && shift.To == CompartmentNone {
				return &ScenarioError{Field: "events", Msg: fmt.Sprintf("event %q shift names no compartment", ev.ID)}
			}
			if shift.Count < 0 {
				return &ScenarioError{Field: "events", Msg: fmt.Sprintf("event %q shift count is negative", ev.ID)}
			}
		}
	}

	return nil
}
