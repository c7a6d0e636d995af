package sim

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/outbreak-sim/outbreak-sim/sim/snapshot"
)

// Metrics aggregates run-level statistics from committed snapshots for the
// final report.
type Metrics struct {
	Days           int
	PeakInfectious int64
	PeakDay        int
	TotalDeaths    int64
	// DailyInfectious is the global Infectious count per committed day.
	DailyInfectious []float64

	initialLiving    int64
	finalSusceptible int64
}

// NewMetrics creates an empty aggregate. initialLiving anchors the attack
// rate (share of the starting living population that ever left Susceptible).
func NewMetrics(initialLiving int64) *Metrics {
	return &Metrics{
		DailyInfectious: make([]float64, 0),
		initialLiving:   initialLiving,
	}
}

// Observe folds one committed day into the aggregate.
func (m *Metrics) Observe(rec snapshot.Record) {
	var infectious, deaths, susceptible int64
	for _, r := range rec.Regions {
		infectious += r.Infectious
		deaths += r.Deceased
		susceptible += r.Susceptible
	}
	m.Days = rec.Day
	m.TotalDeaths = deaths
	m.finalSusceptible = susceptible
	m.DailyInfectious = append(m.DailyInfectious, float64(infectious))
	if infectious > m.PeakInfectious {
		m.PeakInfectious = infectious
		m.PeakDay = rec.Day
	}
}

// AttackRate returns the fraction of the initial living population that left
// Susceptible over the run.
func (m *Metrics) AttackRate() float64 {
	if m.initialLiving <= 0 {
		return 0
	}
	return 1 - float64(m.finalSusceptible)/float64(m.initialLiving)
}

// Print displays the aggregated epidemic curve statistics after a run.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Days Simulated       : %d\n", m.Days)
	fmt.Printf("Peak Infectious      : %d (day %d)\n", m.PeakInfectious, m.PeakDay)
	fmt.Printf("Total Deaths         : %d\n", m.TotalDeaths)
	fmt.Printf("Attack Rate          : %.4f\n", m.AttackRate())
	if len(m.DailyInfectious) > 0 {
		sorted := make([]float64, len(m.DailyInfectious))
		copy(sorted, m.DailyInfectious)
		sort.Float64s(sorted)
		fmt.Printf("Mean Daily Infectious: %.2f\n", stat.Mean(m.DailyInfectious, nil))
		fmt.Printf("Median Daily Infectious: %.2f\n", stat.Quantile(0.5, stat.Empirical, sorted, nil))
		fmt.Printf("P90 Daily Infectious : %.2f\n", stat.Quantile(0.9, stat.Empirical, sorted, nil))
	}
}
