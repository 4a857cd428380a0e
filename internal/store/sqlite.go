package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/stats"
)

// ErrNotFound is the same sentinel the period package uses, so callers can
// check either.
var ErrNotFound = period.ErrNotFound

var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS periods (
    id TEXT PRIMARY KEY,
    experiment_id INTEGER NOT NULL,
    date_range TEXT NOT NULL,
    control TEXT NOT NULL,
    variants TEXT NOT NULL,
    period_count INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);

CREATE INDEX IF NOT EXISTS idx_periods_experiment ON periods(experiment_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_range ON periods(experiment_id, date_range);

CREATE TABLE IF NOT EXISTS consolidated (
    experiment_id INTEGER PRIMARY KEY,
    payload TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);

CREATE TABLE IF NOT EXISTS analyses (
    experiment_id INTEGER PRIMARY KEY,
    payload TEXT NOT NULL,
    verdict TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_id) REFERENCES experiments(id)
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensureExperiment(ctx context.Context, q execer, name string, now int64) (int64, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO experiments (name, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		name, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert experiment: %w", err)
	}
	return experimentID(ctx, q, name)
}

func experimentID(ctx context.Context, q execer, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM experiments WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get experiment: %w", err)
	}
	return id, nil
}

// invalidate drops the derived snapshot and cached analysis after the source
// periods of an experiment change.
func invalidate(ctx context.Context, q execer, expID, now int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM consolidated WHERE experiment_id = ?`, expID); err != nil {
		return fmt.Errorf("failed to drop consolidated period: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM analyses WHERE experiment_id = ?`, expID); err != nil {
		return fmt.Errorf("failed to drop cached analysis: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE experiments SET updated_at = ? WHERE id = ?`, now, expID); err != nil {
		return fmt.Errorf("failed to touch experiment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddPeriod(ctx context.Context, experiment string, p period.Period) (period.Period, error) {
	controlJSON, err := json.Marshal(p.Control)
	if err != nil {
		return period.Period{}, fmt.Errorf("failed to marshal control: %w", err)
	}
	variantsJSON, err := json.Marshal(p.Variants)
	if err != nil {
		return period.Period{}, fmt.Errorf("failed to marshal variants: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return period.Period{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	expID, err := ensureExperiment(ctx, tx, experiment, now)
	if err != nil {
		return period.Period{}, err
	}

	count := p.PeriodCount
	if count < 1 {
		count = 1
	}

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM periods WHERE experiment_id = ? AND date_range = ?`,
		expID, p.DateRange,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO periods (id, experiment_id, date_range, control, variants, period_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, expID, p.DateRange, string(controlJSON), string(variantsJSON), count, now,
		)
		if err != nil {
			return period.Period{}, fmt.Errorf("failed to insert period: %w", err)
		}
	case err != nil:
		return period.Period{}, fmt.Errorf("failed to look up period: %w", err)
	default:
		p.ID = existingID
		_, err = tx.ExecContext(ctx,
			`UPDATE periods SET control = ?, variants = ?, period_count = ?, created_at = ? WHERE id = ?`,
			string(controlJSON), string(variantsJSON), count, now, existingID,
		)
		if err != nil {
			return period.Period{}, fmt.Errorf("failed to update period: %w", err)
		}
	}

	if err := invalidate(ctx, tx, expID, now); err != nil {
		return period.Period{}, err
	}
	if err := tx.Commit(); err != nil {
		return period.Period{}, fmt.Errorf("failed to commit period: %w", err)
	}

	p.CreatedAt = time.Unix(now, 0).UTC()
	return p, nil
}

func (s *SQLiteStore) ListPeriods(ctx context.Context, experiment string) ([]period.Period, error) {
	expID, err := experimentID(ctx, s.db, experiment)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date_range, control, variants, period_count, created_at
		 FROM periods WHERE experiment_id = ? ORDER BY rowid`,
		expID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer rows.Close()

	periods := []period.Period{}
	for rows.Next() {
		var p period.Period
		var controlJSON, variantsJSON string
		var createdAt int64

		if err := rows.Scan(&p.ID, &p.DateRange, &controlJSON, &variantsJSON, &p.PeriodCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		if err := json.Unmarshal([]byte(controlJSON), &p.Control); err != nil {
			return nil, fmt.Errorf("failed to unmarshal control: %w", err)
		}
		if err := json.Unmarshal([]byte(variantsJSON), &p.Variants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate periods: %w", err)
	}

	return periods, nil
}

func (s *SQLiteStore) RemovePeriod(ctx context.Context, experiment, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expID, err := experimentID(ctx, tx, experiment)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM periods WHERE id = ? AND experiment_id = ?`, id, expID)
	if err != nil {
		return fmt.Errorf("failed to delete period: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := invalidate(ctx, tx, expID, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClearPeriods(ctx context.Context, experiment string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expID, err := experimentID(ctx, tx, experiment)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM periods WHERE experiment_id = ?`, expID); err != nil {
		return fmt.Errorf("failed to clear periods: %w", err)
	}
	if err := invalidate(ctx, tx, expID, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReplaceConsolidated(ctx context.Context, experiment string, c period.Consolidated) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal consolidated period: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expID, err := experimentID(ctx, tx, experiment)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO consolidated (experiment_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(experiment_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		expID, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save consolidated period: %w", err)
	}

	// the cached analysis belonged to the previous snapshot
	if _, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE experiment_id = ?`, expID); err != nil {
		return fmt.Errorf("failed to drop cached analysis: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE experiments SET updated_at = ? WHERE id = ?`, now, expID); err != nil {
		return fmt.Errorf("failed to touch experiment: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetConsolidated(ctx context.Context, experiment string) (*period.Consolidated, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT c.payload FROM consolidated c
		 JOIN experiments e ON e.id = c.experiment_id
		 WHERE e.name = ?`, experiment,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consolidated period: %w", err)
	}

	var c period.Consolidated
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consolidated period: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]period.ExperimentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			e.name,
			(SELECT COUNT(*) FROM periods p WHERE p.experiment_id = e.id),
			EXISTS (SELECT 1 FROM consolidated c WHERE c.experiment_id = e.id),
			COALESCE((SELECT a.verdict FROM analyses a WHERE a.experiment_id = e.id), ''),
			e.updated_at
		FROM experiments e
		ORDER BY e.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	experiments := []period.ExperimentSummary{}
	for rows.Next() {
		var e period.ExperimentSummary
		var verdict string
		var updatedAt int64
		if err := rows.Scan(&e.Name, &e.PeriodCount, &e.HasConsolidated, &verdict, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		e.Verdict = stats.Verdict(verdict)
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		experiments = append(experiments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate experiments: %w", err)
	}

	return experiments, nil
}

func (s *SQLiteStore) CountExperiments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count experiments: %w", err)
	}
	return n, nil
}

// SaveAnalysis caches a for experiment, creating the experiment when it does
// not exist yet so ad-hoc analyses can be saved by name.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, experiment string, a *CachedAnalysis) error {
	if a == nil || a.Analysis == nil {
		return errors.New("analysis is required")
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	expID, err := ensureExperiment(ctx, tx, experiment, now)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (experiment_id, payload, verdict, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(experiment_id) DO UPDATE SET payload = excluded.payload, verdict = excluded.verdict, updated_at = excluded.updated_at`,
		expID, string(payload), string(a.Classification.Overall), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, experiment string) (*CachedAnalysis, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT a.payload FROM analyses a
		 JOIN experiments e ON e.id = a.experiment_id
		 WHERE e.name = ?`, experiment,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var a CachedAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}
