// Package pgmirror writes statistic batches to a Postgres database in addition
// to the local store.
package pgmirror

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Register the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

const defaultTable = "watercare_statistics"

// Mirror is a Postgres sink for statistic batches.
type Mirror struct {
	db    *sql.DB
	table string
	owned bool
}

// Option configures the mirror.
type Option func(*Mirror)

// WithTable overrides the default table name. The metadata table is named
// after it with a _meta suffix.
func WithTable(table string) Option {
	return func(m *Mirror) {
		if table != "" {
			m.table = table
		}
	}
}

// New wraps an existing connection.
func New(db *sql.DB, opts ...Option) *Mirror {
	m := &Mirror{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open connects to url with the pgx driver, pings it and creates the tables.
func Open(ctx context.Context, url string, opts ...Option) (*Mirror, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("pgmirror: open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgmirror: ping: %w", err)
	}

	m := New(db, opts...)
	m.owned = true
	if err := m.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) metaTable() string {
	return m.table + "_meta"
}

// EnsureSchema creates the mirror tables if they do not exist.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	statistic_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	unit TEXT NOT NULL,
	source TEXT NOT NULL,
	has_sum BOOLEAN NOT NULL,
	has_mean BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, m.metaTable()),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	statistic_id TEXT NOT NULL REFERENCES %s(statistic_id) ON DELETE CASCADE,
	period_start TIMESTAMPTZ NOT NULL,
	state DOUBLE PRECISION NOT NULL,
	sum DOUBLE PRECISION NOT NULL,
	last_reset TIMESTAMPTZ,
	PRIMARY KEY (statistic_id, period_start)
)`, m.table, m.metaTable()),
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pgmirror: ensure schema: %w", err)
		}
	}
	return nil
}

// ImportStatistics writes one batch in a single transaction, replacing any
// rows inside the batch's window.
func (m *Mirror) ImportStatistics(ctx context.Context, meta models.StatisticMetadata, points []models.StatisticPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgmirror: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (statistic_id, name, unit, source, has_sum, has_mean, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (statistic_id) DO UPDATE SET
	name = EXCLUDED.name,
	unit = EXCLUDED.unit,
	source = EXCLUDED.source,
	has_sum = EXCLUDED.has_sum,
	has_mean = EXCLUDED.has_mean,
	updated_at = EXCLUDED.updated_at`, m.metaTable()),
		meta.StatisticID, meta.Name, meta.Unit, meta.Source, meta.HasSum, meta.HasMean, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgmirror: upsert metadata: %w", err)
	}

	first, last := points[0].Start.UTC(), points[len(points)-1].Start.UTC()
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE statistic_id = $1 AND period_start BETWEEN $2 AND $3`, m.table),
		meta.StatisticID, first, last); err != nil {
		return fmt.Errorf("pgmirror: clear window: %w", err)
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (statistic_id, period_start, state, sum, last_reset)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (statistic_id, period_start) DO UPDATE SET
	state = EXCLUDED.state,
	sum = EXCLUDED.sum,
	last_reset = EXCLUDED.last_reset`, m.table)
	for _, p := range points {
		var lastReset sql.NullTime
		if p.LastReset != nil {
			lastReset = sql.NullTime{Time: p.LastReset.UTC(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insert, meta.StatisticID, p.Start.UTC(), p.State, p.Sum, lastReset); err != nil {
			return fmt.Errorf("pgmirror: insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgmirror: commit: %w", err)
	}
	return nil
}

// Close releases the connection if the mirror opened it.
func (m *Mirror) Close() error {
	if m.owned {
		return m.db.Close()
	}
	return nil
}
