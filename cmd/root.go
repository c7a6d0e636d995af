package cmd

import (
	"context"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/outbreak-sim/outbreak-sim/sim"
	"github.com/outbreak-sim/outbreak-sim/sim/snapshot"
	"github.com/outbreak-sim/outbreak-sim/sim/snapshot/sqlite"
)

var (
	// CLI flags for the run subcommand
	scenarioPath string        // Scenario YAML path ("" = built-in default world)
	seed         int64         // Master seed override (0 = scenario's seed)
	horizonDays  int           // Horizon override in days (0 = scenario's horizon)
	workers      int           // Disease-phase worker pool size
	stepTimeout  time.Duration // Per-step deadline for the disease phase
	logLevel     string        // Log verbosity level
	csvOut       string        // CSV snapshot output path ("" = disabled)
	dbOut        string        // SQLite snapshot output path ("" = disabled)
)

// envDefaults lets deployments pin defaults without flags; flags still win.
type envDefaults struct {
	LogLevel string `env:"OUTBREAK_LOG" envDefault:"info"`
	Scenario string `env:"OUTBREAK_SCENARIO"`
	CSVOut   string `env:"OUTBREAK_CSV"`
	DBOut    string `env:"OUTBREAK_DB"`
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "outbreak-sim",
	Short: "Day-by-day simulator for epidemic spread across migrating regions",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the epidemic simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		scenario := DefaultScenario()
		if scenarioPath != "" {
			scenario, err = LoadScenario(scenarioPath)
			if err != nil {
				logrus.Fatalf("unable to read scenario: %v", err)
			}
		}

		cfg, err := scenario.Build(sim.NewRunConfig(horizonDays, seed, workers, stepTimeout))
		if err != nil {
			logrus.Fatalf("invalid scenario: %v", err)
		}

		sink, err := buildSink()
		if err != nil {
			logrus.Fatalf("unable to open snapshot sink: %v", err)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logrus.Errorf("closing snapshot sink: %v", err)
			}
		}()

		logrus.Infof("Starting simulation: %d regions, horizon=%d days, seed=%d, workers=%d",
			len(cfg.Regions), cfg.Run.HorizonDays, cfg.Run.Seed, cfg.Run.Workers)

		s, err := sim.NewSimulator(cfg, sink)
		if err != nil {
			logrus.Fatalf("unable to initialize simulation: %v", err)
		}
		if err := s.Run(context.Background()); err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		s.Metrics.Print()

		logrus.Info("Simulation complete.")
	},
}

// buildSink composes the configured snapshot outputs. With none configured
// the engine keeps snapshots in memory and only the metrics report survives.
func buildSink() (snapshot.Sink, error) {
	var sinks []snapshot.Sink
	if csvOut != "" {
		csvSink, err := snapshot.NewCSVSink(csvOut)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csvSink)
	}
	if dbOut != "" {
		store, err := sqlite.Open(dbOut)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return snapshot.NewMemorySink(), nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return snapshot.NewMultiSink(sinks...), nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	var defaults envDefaults
	if err := env.Parse(&defaults); err != nil {
		defaults = envDefaults{LogLevel: "info"}
	}

	runCmd.Flags().StringVar(&scenarioPath, "scenario", defaults.Scenario, "Scenario YAML file (empty = built-in default world)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Master seed override (0 = scenario's seed)")
	runCmd.Flags().IntVar(&horizonDays, "horizon", 0, "Simulation horizon override in days (0 = scenario's horizon)")
	runCmd.Flags().IntVar(&workers, "workers", 4, "Disease-phase worker pool size")
	runCmd.Flags().DurationVar(&stepTimeout, "step-timeout", 30*time.Second, "Per-step deadline for the disease phase")
	runCmd.Flags().StringVar(&logLevel, "log", defaults.LogLevel, "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&csvOut, "csv-out", defaults.CSVOut, "Write per-day snapshots to this CSV file")
	runCmd.Flags().StringVar(&dbOut, "db-out", defaults.DBOut, "Write per-day snapshots to this SQLite database")

	rootCmd.AddCommand(runCmd)
}
