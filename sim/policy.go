package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// PolicyPhase is the lifecycle state of one policy.
type PolicyPhase string

const (
	PolicyArmed   PolicyPhase = "armed"
	PolicyActive  PolicyPhase = "active"
	PolicyExpired PolicyPhase = "expired"
)

// TriggerKind selects the predicate a Trigger evaluates.
type TriggerKind string

const (
	// TriggerDayReached holds from the configured day onward.
	TriggerDayReached TriggerKind = "day-reached"
	// TriggerInfectiousAbove holds while the Infectious count of Region
	// (global when empty) exceeds Threshold.
	TriggerInfectiousAbove TriggerKind = "infectious-above"
	// TriggerInfectiousBelow holds while the Infectious count of Region
	// (global when empty) is strictly below Threshold.
	TriggerInfectiousBelow TriggerKind = "infectious-below"
	// TriggerInfectedFractionAbove holds while Infectious/living of Region
	// (global when empty) exceeds Fraction.
	TriggerInfectedFractionAbove TriggerKind = "infected-fraction-above"
)

// Trigger is a boolean predicate over a StateView.
type Trigger struct {
	Kind      TriggerKind
	Day       int
	Region    string
	Threshold int64
	Fraction  float64
}

// Holds evaluates the predicate against the given view.
func (t Trigger) Holds(view *StateView) bool {
	switch t.Kind {
	case TriggerDayReached:
		return view.Day >= t.Day
	case TriggerInfectiousAbove:
		return view.Infectious(t.Region) > t.Threshold
	case TriggerInfectiousBelow:
		return view.Infectious(t.Region) < t.Threshold
	case TriggerInfectedFractionAbove:
		return view.InfectedFraction(t.Region) > t.Fraction
	}
	return false
}

// Validate rejects predicates the engine cannot evaluate.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerDayReached:
		if t.Day < 1 {
			return fmt.Errorf("day-reached trigger needs day >= 1, got %d", t.Day)
		}
	case TriggerInfectiousAbove, TriggerInfectiousBelow:
		if t.Threshold < 0 {
			return fmt.Errorf("threshold %d is negative", t.Threshold)
		}
	case TriggerInfectedFractionAbove:
		if t.Fraction < 0 || t.Fraction > 1 {
			return fmt.Errorf("fraction %v outside [0,1]", t.Fraction)
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	return nil
}

// PolicyEffect is what an active policy contributes each day. Scales compose
// multiplicatively across simultaneously active policies, so the combined
// effect is independent of evaluation order. Transmission and contact scales
// <= 0 are treated as unset (no effect). MigrationScale is a pointer because
// zero is meaningful there: borders closed. An optional Adjust moves
// individuals between two compartments of one region every active day
// (e.g., a vaccination drive moving S to R).
type PolicyEffect struct {
	TransmissionScale float64
	ContactScale      float64
	MigrationScale    *float64
	Adjust            *CompartmentShift
}

// Policy is one intervention with an explicit armed -> active -> expired
// lifecycle. Reverting its effect is a defined operation: effective
// parameters are always recomputed from the orchestrator's baseline, never
// patched in place.
type Policy struct {
	ID string
	// Priority orders evaluation; lower evaluates first. Ties fall back to
	// declaration order.
	Priority int
	Trigger  Trigger
	// Deactivate, when non-nil, expires the policy as soon as it holds.
	Deactivate *Trigger
	// Duration is the number of days the policy stays active once
	// triggered; 0 means until Deactivate fires (or forever).
	Duration int
	Effect   PolicyEffect

	phase       PolicyPhase
	activatedOn int
	declIndex   int
}

// Phase returns the policy's current lifecycle state.
func (p *Policy) Phase() PolicyPhase { return p.phase }

// PolicyEngine evaluates every policy once per day, post-migration, in a
// stable deterministic priority order.
type PolicyEngine struct {
	policies []*Policy
}

// NewPolicyEngine arms the given policies and fixes their evaluation order.
func NewPolicyEngine(policies []*Policy) *PolicyEngine {
	ordered := make([]*Policy, len(policies))
	copy(ordered, policies)
	for i, p := range ordered {
		p.phase = PolicyArmed
		p.declIndex = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].declIndex < ordered[j].declIndex
	})
	return &PolicyEngine{policies: ordered}
}

// Evaluate advances every policy's lifecycle against the post-migration view.
// Expiry is checked before arming so a policy active for Duration days is
// reverted exactly at the duration boundary.
func (e *PolicyEngine) Evaluate(view *StateView) {
	for _, p := range e.policies {
		switch p.phase {
		case PolicyActive:
			expired := p.Duration > 0 && view.Day-p.activatedOn >= p.Duration
			if !expired && p.Deactivate != nil && p.Deactivate.Holds(view) {
				expired = true
			}
			if expired {
				p.phase = PolicyExpired
				logrus.Infof("[day %03d] policy %q expired", view.Day, p.ID)
			}
		case PolicyArmed:
			if p.Trigger.Holds(view) {
				p.phase = PolicyActive
				p.activatedOn = view.Day
				logrus.Infof("[day %03d] policy %q activated", view.Day, p.ID)
			}
		}
	}
}

// EffectiveParameters applies the composed scales of all active policies to
// the baseline. Because the baseline is passed in fresh each day, expiry
// reverts a policy's contribution with no bookkeeping.
func (e *PolicyEngine) EffectiveParameters(base DiseaseParameters) DiseaseParameters {
	transmission, contact := 1.0, 1.0
	for _, p := range e.policies {
		if p.phase != PolicyActive {
			continue
		}
		if s := p.Effect.TransmissionScale; s > 0 {
			transmission *= s
		}
		if s := p.Effect.ContactScale; s > 0 {
			contact *= s
		}
	}
	return base.scaled(transmission, contact)
}

// MigrationScale returns the composed migration-rate multiplier of all
// active policies. A configured scale of exactly 0 closes borders.
func (e *PolicyEngine) MigrationScale() float64 {
	scale := 1.0
	for _, p := range e.policies {
		if p.phase != PolicyActive || p.Effect.MigrationScale == nil {
			continue
		}
		s := *p.Effect.MigrationScale
		if s < 0 {
			s = 0
		}
		scale *= s
	}
	return scale
}

// ActiveAdjustments returns the compartment adjustments of active policies,
// in evaluation order.
func (e *PolicyEngine) ActiveAdjustments() []CompartmentShift {
	var out []CompartmentShift
	for _, p := range e.policies {
		if p.phase == PolicyActive && p.Effect.Adjust != nil {
			out = append(out, *p.Effect.Adjust)
		}
	}
	return out
}

// ActiveIDs returns the IDs of active policies, in evaluation order.
func (e *PolicyEngine) ActiveIDs() []string {
	out := make([]string, 0, len(e.policies))
	for _, p := range e.policies {
		if p.phase == PolicyActive {
			out = append(out, p.ID)
		}
	}
	return out
}
