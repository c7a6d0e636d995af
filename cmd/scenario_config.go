package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/outbreak-sim/outbreak-sim/sim"
)

// Scenario is the YAML schema for one simulation scenario.
type Scenario struct {
	Horizon    int                `yaml:"horizon"`
	Seed       int64              `yaml:"seed"`
	Parameters ScenarioParameters `yaml:"parameters"`
	Regions    []ScenarioRegion   `yaml:"regions"`
	Migration  []ScenarioFlow     `yaml:"migration"`
	Policies   []ScenarioPolicy   `yaml:"policies"`
	Events     []ScenarioEvent    `yaml:"events"`
}

type ScenarioParameters struct {
	TransmissionRate  float64  `yaml:"transmission_rate"`
	IncubationRate    float64  `yaml:"incubation_rate"`
	RecoveryRate      float64  `yaml:"recovery_rate"`
	MortalityRate     float64  `yaml:"mortality_rate"`
	ContactMultiplier *float64 `yaml:"contact_multiplier"` // nil defaults to 1
}

type ScenarioRegion struct {
	ID          string              `yaml:"id"`
	Susceptible int64               `yaml:"susceptible"`
	Exposed     int64               `yaml:"exposed"`
	Infectious  int64               `yaml:"infectious"`
	Recovered   int64               `yaml:"recovered"`
	Deceased    int64               `yaml:"deceased"`
	Parameters  *ScenarioParameters `yaml:"parameters"` // optional local override
}

type ScenarioFlow struct {
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	Rate float64 `yaml:"rate"`
}

type ScenarioTrigger struct {
	Kind      string  `yaml:"kind"`
	Day       int     `yaml:"day"`
	Region    string  `yaml:"region"`
	Threshold int64   `yaml:"threshold"`
	Fraction  float64 `yaml:"fraction"`
}

type ScenarioShift struct {
	Region string `yaml:"region"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Count  int64  `yaml:"count"`
}

type ScenarioEffect struct {
	TransmissionScale *float64       `yaml:"transmission_scale"` // nil = no effect
	ContactScale      *float64       `yaml:"contact_scale"`
	MigrationScale    *float64       `yaml:"migration_scale"`
	Shift             *ScenarioShift `yaml:"shift"`
}

type ScenarioPolicy struct {
	ID         string           `yaml:"id"`
	Priority   int              `yaml:"priority"`
	Trigger    ScenarioTrigger  `yaml:"trigger"`
	Deactivate *ScenarioTrigger `yaml:"deactivate"`
	Duration   int              `yaml:"duration"`
	Effect     ScenarioEffect   `yaml:"effect"`
}

type ScenarioEvent struct {
	ID          string         `yaml:"id"`
	Kind        string         `yaml:"kind"`
	Day         int            `yaml:"day"`
	Probability float64        `yaml:"probability"`
	Repeat      bool           `yaml:"repeat"`
	Effect      ScenarioEffect `yaml:"effect"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	return &sc, nil
}

// Build converts the scenario into a validated engine configuration.
func (sc *Scenario) Build(run sim.RunConfig) (*sim.Config, error) {
	cfg := &sim.Config{
		Run:        run,
		Parameters: sc.Parameters.toParams(),
	}
	if cfg.Run.HorizonDays == 0 {
		cfg.Run.HorizonDays = sc.Horizon
	}
	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = sc.Seed
	}

	for _, r := range sc.Regions {
		region := &sim.Region{ID: r.ID}
		region.Compartments[sim.Susceptible] = r.Susceptible
		region.Compartments[sim.Exposed] = r.Exposed
		region.Compartments[sim.Infectious] = r.Infectious
		region.Compartments[sim.Recovered] = r.Recovered
		region.Compartments[sim.Deceased] = r.Deceased
		if r.Parameters != nil {
			p := r.Parameters.toParams()
			region.Overrides = &p
		}
		cfg.Regions = append(cfg.Regions, region)
	}

	if len(sc.Migration) > 0 {
		cfg.Migration = sim.NewMigrationMatrix()
		for _, f := range sc.Migration {
			if err := cfg.Migration.SetRate(f.From, f.To, f.Rate); err != nil {
				return nil, &sim.ScenarioError{Field: "migration", Msg: err.Error()}
			}
		}
	}

	for _, p := range sc.Policies {
		policy := &sim.Policy{
			ID:       p.ID,
			Priority: p.Priority,
			Duration: p.Duration,
		}
		trigger, err := p.Trigger.toTrigger()
		if err != nil {
			return nil, &sim.ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q: %v", p.ID, err)}
		}
		policy.Trigger = trigger
		if p.Deactivate != nil {
			deactivate, err := p.Deactivate.toTrigger()
			if err != nil {
				return nil, &sim.ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q: %v", p.ID, err)}
			}
			policy.Deactivate = &deactivate
		}
		effect, shift, err := p.Effect.toEffect()
		if err != nil {
			return nil, &sim.ScenarioError{Field: "policies", Msg: fmt.Sprintf("policy %q: %v", p.ID, err)}
		}
		policy.Effect = sim.PolicyEffect{
			TransmissionScale: effect.TransmissionScale,
			ContactScale:      effect.ContactScale,
			MigrationScale:    p.Effect.MigrationScale,
			Adjust:            shift,
		}
		cfg.Policies = append(cfg.Policies, policy)
	}

	for _, e := range sc.Events {
		event := &sim.Event{
			ID:          e.ID,
			Kind:        sim.EventKind(e.Kind),
			Day:         e.Day,
			Probability: e.Probability,
			Repeat:      e.Repeat,
		}
		effect, shift, err := e.Effect.toEffect()
		if err != nil {
			return nil, &sim.ScenarioError{Field: "events", Msg: fmt.Sprintf("event %q: %v", e.ID, err)}
		}
		event.Effect = sim.EventEffect{
			Shift:             shift,
			TransmissionScale: effect.TransmissionScale,
		}
		// Events carry a multiplicative shock, not a policy-style scale:
		// an unset transmission_scale means no parameter effect at all.
		if e.Effect.TransmissionScale == nil {
			event.Effect.TransmissionScale = 0
		}
		cfg.Events = append(cfg.Events, event)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p ScenarioParameters) toParams() sim.DiseaseParameters {
	contact := 1.0
	if p.ContactMultiplier != nil {
		contact = *p.ContactMultiplier
	}
	return sim.DiseaseParameters{
		TransmissionRate:  p.TransmissionRate,
		IncubationRate:    p.IncubationRate,
		RecoveryRate:      p.RecoveryRate,
		MortalityRate:     p.MortalityRate,
		ContactMultiplier: contact,
	}
}

func (t ScenarioTrigger) toTrigger() (sim.Trigger, error) {
	out := sim.Trigger{
		Kind:      sim.TriggerKind(t.Kind),
		Day:       t.Day,
		Region:    t.Region,
		Threshold: t.Threshold,
		Fraction:  t.Fraction,
	}
	return out, out.Validate()
}

// scaledEffect carries the normalized scale values (unset = 1 = no effect).
type scaledEffect struct {
	TransmissionScale float64
	ContactScale      float64
}

func (e ScenarioEffect) toEffect() (scaledEffect, *sim.CompartmentShift, error) {
	out := scaledEffect{TransmissionScale: 1, ContactScale: 1}
	if e.TransmissionScale != nil {
		out.TransmissionScale = *e.TransmissionScale
	}
	if e.ContactScale != nil {
		out.ContactScale = *e.ContactScale
	}
	if e.Shift == nil {
		return out, nil, nil
	}
	from, err := sim.ParseCompartment(e.Shift.From)
	if err != nil {
		return out, nil, err
	}
	to, err := sim.ParseCompartment(e.Shift.To)
	if err != nil {
		return out, nil, err
	}
	return out, &sim.CompartmentShift{
		Region: e.Shift.Region,
		From:   from,
		To:     to,
		Count:  e.Shift.Count,
	}, nil
}
