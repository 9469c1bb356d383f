package db

import (
	"context"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many have
// run. Never edit an entry once released, append a new one.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS statistics_meta (
		statistic_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		source TEXT NOT NULL,
		has_sum INTEGER NOT NULL DEFAULT 1,
		has_mean INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS statistics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		statistic_id TEXT NOT NULL REFERENCES statistics_meta(statistic_id) ON DELETE CASCADE,
		start INTEGER NOT NULL,
		state REAL NOT NULL DEFAULT 0,
		sum REAL NOT NULL DEFAULT 0,
		last_reset INTEGER,
		UNIQUE(statistic_id, start)
	);
	CREATE INDEX IF NOT EXISTS idx_statistics_id_start ON statistics(statistic_id, start);
	`,
	`
	CREATE TABLE IF NOT EXISTS refresh_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		points INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_refresh_runs_started ON refresh_runs(started_at);
	`,
	`
	CREATE TABLE IF NOT EXISTS usage_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		endpoint TEXT NOT NULL,
		state REAL NOT NULL DEFAULT 0,
		has_state INTEGER NOT NULL DEFAULT 0,
		attributes TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL
	);
	`,
}

// SchemaVersion returns the number of applied migrations.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (db *DB) migrate(ctx context.Context) error {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
