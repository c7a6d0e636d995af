// Package sqlite provides a SQLite-backed append-only snapshot sink.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/outbreak-sim/outbreak-sim/sim/snapshot"
)

// Store persists snapshot records in SQLite, one row per region per day.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	day             INTEGER NOT NULL,
	region          TEXT    NOT NULL,
	susceptible     INTEGER NOT NULL,
	exposed         INTEGER NOT NULL,
	infectious      INTEGER NOT NULL,
	recovered       INTEGER NOT NULL,
	deceased        INTEGER NOT NULL,
	active_policies TEXT    NOT NULL,
	fired_events    TEXT    NOT NULL,
	PRIMARY KEY (day, region)
);`

// Open opens (creating if needed) a SQLite snapshot store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append inserts one record's region rows in a single transaction, so a
// day is either fully persisted or not at all.
func (s *Store) Append(rec snapshot.Record) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	policies := strings.Join(rec.ActivePolicies, ";")
	events := strings.Join(rec.FiredEvents, ";")
	for _, region := range rec.Regions {
		_, err := tx.Exec(
			`INSERT INTO snapshots
			 (day, region, susceptible, exposed, infectious, recovered, deceased, active_policies, fired_events)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Day, region.ID, region.Susceptible, region.Exposed,
			region.Infectious, region.Recovered, region.Deceased,
			policies, events,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert snapshot day %d region %q: %w", rec.Day, region.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot day %d: %w", rec.Day, err)
	}
	return nil
}

// DayCount returns the number of distinct days persisted. Useful for
// resumption checks.
func (s *Store) DayCount() (int, error) {
	var n int
	if err := s.sqlDB.QueryRow(`SELECT COUNT(DISTINCT day) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshot days: %w", err)
	}
	return n, nil
}
