// Package store persists benchmark run summaries in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	created_at     INTEGER NOT NULL,
	model          TEXT NOT NULL,
	reference      TEXT NOT NULL,
	width          INTEGER NOT NULL,
	rows_completed INTEGER NOT NULL,
	aborted        INTEGER NOT NULL,
	max_divergence REAL NOT NULL,
	config_json    TEXT
);
CREATE TABLE IF NOT EXISTS run_backends (
	run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	samples     INTEGER NOT NULL,
	min_micros  REAL NOT NULL,
	max_micros  REAL NOT NULL,
	mean_micros REAL NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Run is the summary of a benchmark run.
type Run struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	Model         string
	Reference     string
	Width         int
	RowsCompleted int
	Aborted       bool
	MaxDivergence float64
	// ConfigJSON optionally stores the configuration the run used.
	ConfigJSON string
	Backends   []Backend
}

// Backend is the latency summary of one backend of a run.
type Backend struct {
	Name       string
	Samples    int
	MinMicros  float64
	MaxMicros  float64
	MeanMicros float64
}

// Store is a run database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists r. A zero ID is replaced by a new random UUID and a zero
// CreatedAt by the current time; the stored values are returned in r.
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var cfg any
	if r.ConfigJSON != "" {
		cfg = r.ConfigJSON
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, model, reference, width,
			rows_completed, aborted, max_divergence, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.CreatedAt.UnixNano(), r.Model, r.Reference, r.Width,
		r.RowsCompleted, r.Aborted, r.MaxDivergence, cfg,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, b := range r.Backends {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_backends (
				run_id, position, name, samples, min_micros, max_micros, mean_micros
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), i, b.Name, b.Samples, b.MinMicros, b.MaxMicros, b.MeanMicros,
		)
		if err != nil {
			return fmt.Errorf("insert backend %q: %w", b.Name, err)
		}
	}
	return tx.Commit()
}

// Runs returns all runs ordered by creation time, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_at, model, reference, width,
		       rows_completed, aborted, max_divergence, config_json
		FROM runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range runs {
		runs[i].Backends, err = s.backends(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Run returns the run with the given ID.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, model, reference, width,
		       rows_completed, aborted, max_divergence, config_json
		FROM runs
		WHERE run_id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return Run{}, err
	}
	r.Backends, err = s.backends(ctx, id)
	return r, err
}

func (s *Store) backends(ctx context.Context, id uuid.UUID) ([]Backend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, samples, min_micros, max_micros, mean_micros
		FROM run_backends
		WHERE run_id = ?
		ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query backends: %w", err)
	}
	defer rows.Close()
	var bs []Backend
	for rows.Next() {
		var b Backend
		if err := rows.Scan(&b.Name, &b.Samples, &b.MinMicros, &b.MaxMicros, &b.MeanMicros); err != nil {
			return nil, err
		}
		bs = append(bs, b)
	}
	return bs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		id      string
		created int64
		cfg     sql.NullString
	)
	err := sc.Scan(&id, &created, &r.Model, &r.Reference, &r.Width,
		&r.RowsCompleted, &r.Aborted, &r.MaxDivergence, &cfg)
	if err != nil {
		return Run{}, err
	}
	r.ID, err = uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("bad run id %q: %w", id, err)
	}
	r.CreatedAt = time.Unix(0, created)
	r.ConfigJSON = cfg.String
	return r, nil
}
