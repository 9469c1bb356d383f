package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/watercare-dashboard-tui/internal/logger"
	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// ImportStatistics stores one export batch. Points already stored inside the
// batch's time window are replaced, points outside it are kept.
func (db *DB) ImportStatistics(ctx context.Context, meta models.StatisticMetadata, points []models.StatisticPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statistics_meta (statistic_id, name, unit, source, has_sum, has_mean, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(statistic_id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			source = excluded.source,
			has_sum = excluded.has_sum,
			has_mean = excluded.has_mean,
			updated_at = excluded.updated_at
	`,
		meta.StatisticID, meta.Name, meta.Unit, meta.Source,
		boolToInt(meta.HasSum), boolToInt(meta.HasMean),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert statistic metadata: %w", err)
	}

	first, last := points[0].Start.Unix(), points[len(points)-1].Start.Unix()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statistics WHERE statistic_id = ? AND start BETWEEN ? AND ?`,
		meta.StatisticID, first, last,
	); err != nil {
		return fmt.Errorf("failed to clear statistic window: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO statistics (statistic_id, start, state, sum, last_reset)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(statistic_id, start) DO UPDATE SET
			state = excluded.state,
			sum = excluded.sum,
			last_reset = excluded.last_reset
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statistic insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		var lastReset sql.NullInt64
		if p.LastReset != nil {
			lastReset = sql.NullInt64{Int64: p.LastReset.Unix(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, meta.StatisticID, p.Start.Unix(), p.State, p.Sum, lastReset); err != nil {
			return fmt.Errorf("failed to insert statistic point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// GetStatistics returns the stored points of a statistic starting at or after
// since, oldest first. A zero since returns every point.
func (db *DB) GetStatistics(ctx context.Context, statisticID string, since time.Time) ([]models.StatisticPoint, error) {
	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}

	rows, err := db.QueryContext(ctx, `
		SELECT start, state, sum, last_reset
		FROM statistics
		WHERE statistic_id = ? AND start >= ?
		ORDER BY start ASC
	`, statisticID, sinceUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []models.StatisticPoint
	for rows.Next() {
		var (
			start     int64
			p         models.StatisticPoint
			lastReset sql.NullInt64
		)
		if err := rows.Scan(&start, &p.State, &p.Sum, &lastReset); err != nil {
			return nil, fmt.Errorf("failed to scan statistic point: %w", err)
		}
		p.Start = time.Unix(start, 0)
		if lastReset.Valid {
			t := time.Unix(lastReset.Int64, 0)
			p.LastReset = &t
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// ListStatisticMeta returns every known statistic ordered by id.
func (db *DB) ListStatisticMeta(ctx context.Context) ([]models.StatisticMetadata, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT statistic_id, name, unit, source, has_sum, has_mean
		FROM statistics_meta
		ORDER BY statistic_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistic metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metas []models.StatisticMetadata
	for rows.Next() {
		var m models.StatisticMetadata
		var hasSum, hasMean int
		if err := rows.Scan(&m.StatisticID, &m.Name, &m.Unit, &m.Source, &hasSum, &hasMean); err != nil {
			return nil, fmt.Errorf("failed to scan statistic metadata: %w", err)
		}
		m.HasSum = hasSum != 0
		m.HasMean = hasMean != 0
		metas = append(metas, m)
	}

	return metas, rows.Err()
}

// GetStatisticMeta returns the metadata of one statistic, or nil if unknown.
func (db *DB) GetStatisticMeta(ctx context.Context, statisticID string) (*models.StatisticMetadata, error) {
	var m models.StatisticMetadata
	var hasSum, hasMean int
	err := db.QueryRowContext(ctx, `
		SELECT statistic_id, name, unit, source, has_sum, has_mean
		FROM statistics_meta WHERE statistic_id = ?
	`, statisticID).Scan(&m.StatisticID, &m.Name, &m.Unit, &m.Source, &hasSum, &hasMean)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistic metadata: %w", err)
	}
	m.HasSum = hasSum != 0
	m.HasMean = hasMean != 0
	return &m, nil
}

// InsertRefreshRun logs an update cycle.
func (db *DB) InsertRefreshRun(ctx context.Context, run *models.RefreshRun) error {
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO refresh_runs (started_at, endpoint, duration_ms, status, error, points)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		startedAt.UTC().Format(timeLayout),
		string(run.Endpoint),
		run.DurationMs,
		run.Status,
		nullString(run.Error),
		run.Points,
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh run: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		run.ID = id
	}

	return nil
}

// GetRecentRefreshRuns returns the most recent update cycles, newest first.
func (db *DB) GetRecentRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, started_at, endpoint, duration_ms, status, error, points
		FROM refresh_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RefreshRun
	for rows.Next() {
		var run models.RefreshRun
		var startedAt, endpoint string
		var errStr sql.NullString

		if err := rows.Scan(&run.ID, &startedAt, &endpoint, &run.DurationMs, &run.Status, &errStr, &run.Points); err != nil {
			return nil, fmt.Errorf("failed to scan refresh run: %w", err)
		}

		run.StartedAt, err = time.ParseInLocation(timeLayout, startedAt, time.UTC)
		if err != nil {
			logger.Warn("invalid refresh run timestamp", "id", run.ID, "value", startedAt)
		}
		run.Endpoint = models.EndpointKind(endpoint)
		run.Error = errStr.String
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveState replaces the stored presentation state.
func (db *DB) SaveState(ctx context.Context, state *models.UsageState) error {
	attrs, err := json.Marshal(state.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO usage_state (id, endpoint, state, has_state, attributes, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			endpoint = excluded.endpoint,
			state = excluded.state,
			has_state = excluded.has_state,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`,
		string(state.Endpoint),
		state.State,
		boolToInt(state.HasState),
		string(attrs),
		updatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState returns the last saved presentation state, or nil if none.
func (db *DB) LoadState(ctx context.Context) (*models.UsageState, error) {
	var (
		state     models.UsageState
		endpoint  string
		hasState  int
		attrs     string
		updatedAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT endpoint, state, has_state, attributes, updated_at
		FROM usage_state WHERE id = 1
	`).Scan(&endpoint, &state.State, &hasState, &attrs, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	state.Endpoint = models.EndpointKind(endpoint)
	state.HasState = hasState != 0
	if err := json.Unmarshal([]byte(attrs), &state.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if t, err := time.ParseInLocation(timeLayout, updatedAt, time.UTC); err == nil {
		state.UpdatedAt = t
	}
	return &state, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
