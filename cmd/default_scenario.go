package cmd

// DefaultScenario is the built-in seven-region world used when no scenario
// file is given: 500 people per region, the outbreak seeded in italy (10%
// infectious), low symmetric travel, lockdown and adaptive-closure policies,
// a more-contagious variant emerging on day 15, and a vaccination campaign
// from day 10.
func DefaultScenario() *Scenario {
	regions := []string{"germany", "italy", "france", "spain", "sweden", "belgium", "uk"}

	sc := &Scenario{
		Horizon: 30,
		Seed:    42,
		Parameters: ScenarioParameters{
			TransmissionRate: 0.30,
			IncubationRate:   0.25,
			RecoveryRate:     0.15,
			MortalityRate:    0.02,
		},
	}

	for _, id := range regions {
		r := ScenarioRegion{ID: id, Susceptible: 500}
		if id == "italy" {
			r.Susceptible = 450
			r.Infectious = 50
		}
		sc.Regions = append(sc.Regions, r)
	}

	// Low symmetric travel between every pair. 6 destinations at 0.005
	// keeps each origin's outflow well under the conservation bound.
	for _, from := range regions {
		for _, to := range regions {
			if from == to {
				continue
			}
			sc.Migration = append(sc.Migration, ScenarioFlow{From: from, To: to, Rate: 0.005})
		}
	}

	closed := 0.0
	restricted := 0.1
	reduced := 0.4
	sc.Policies = []ScenarioPolicy{
		{
			ID:       "lockdown-italy",
			Priority: 1,
			Trigger:  ScenarioTrigger{Kind: "infectious-above", Region: "italy", Threshold: 80},
			Duration: 10,
			Effect:   ScenarioEffect{ContactScale: &reduced},
		},
		{
			ID:         "borders-belgium",
			Priority:   2,
			Trigger:    ScenarioTrigger{Kind: "infected-fraction-above", Region: "belgium", Fraction: 0.20},
			Deactivate: &ScenarioTrigger{Kind: "infectious-below", Region: "belgium", Threshold: 25},
			Effect:     ScenarioEffect{MigrationScale: &closed},
		},
		{
			ID:         "borders-uk",
			Priority:   3,
			Trigger:    ScenarioTrigger{Kind: "infected-fraction-above", Region: "uk", Fraction: 0.30},
			Deactivate: &ScenarioTrigger{Kind: "infectious-below", Region: "uk", Threshold: 40},
			Effect:     ScenarioEffect{MigrationScale: &restricted},
		},
	}

	variant := 1.5
	sc.Events = []ScenarioEvent{
		{
			ID:     "variant-emergence",
			Kind:   "scheduled",
			Day:    15,
			Effect: ScenarioEffect{TransmissionScale: &variant},
		},
		{
			ID:     "vaccination-campaign",
			Kind:   "scheduled",
			Day:    10,
			Repeat: true,
			Effect: ScenarioEffect{Shift: &ScenarioShift{Region: "germany", From: "S", To: "R", Count: 25}},
		},
		{
			ID:          "superspreader-gathering",
			Kind:        "probabilistic",
			Probability: 0.05,
			Effect:      ScenarioEffect{Shift: &ScenarioShift{Region: "spain", From: "S", To: "E", Count: 30}},
		},
	}

	return sc
}
