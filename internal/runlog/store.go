// Package runlog persists the history of benchmark runs.
//
// Two artifacts are produced per run: rows in a SQLite database (queryable
// history across runs) and a canonical JSON manifest next to the run's log
// files (self-describing record of what the log directory contains). Both are
// observational; neither ever affects execution.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// Run is one execution of a suite against an analyzer binary.
type Run struct {
	// ID is a ULID: lexicographic order is creation order.
	ID       string
	Suite    string
	Analyzer string
	Input    string
	Script   string

	StartedAt  time.Time
	FinishedAt time.Time

	// Status is "running" until Finish, then "completed" or "failed".
	Status string

	Total   int
	Failed  int
	Skipped int
}

// InvocationRecord is the persisted outcome of one invocation within a run.
type InvocationRecord struct {
	RunID      string
	Seq        int
	Name       string
	ParamsJSON string
	LogPath    string

	// Outcome is one of "ok", "analyzer-failed", "skipped", "error",
	// "canceled".
	Outcome    string
	ExitCode   int
	DurationMS int64
}

// NewRunID returns a fresh ULID run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	analyzer    TEXT NOT NULL,
	input       TEXT NOT NULL,
	script      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS invocations (
	run_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	params_json TEXT NOT NULL,
	log_path    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_invocations_run ON invocations(run_id);
`

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// BeginRun inserts the run in "running" status.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, suite, analyzer, input, script, started_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, 'running')`,
		run.ID, run.Suite, run.Analyzer, run.Input, run.Script, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// RecordInvocation appends one invocation outcome to the run.
func (s *Store) RecordInvocation(ctx context.Context, rec InvocationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (run_id, seq, name, params_json, log_path, outcome, exit_code, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Seq, rec.Name, rec.ParamsJSON, rec.LogPath, rec.Outcome, rec.ExitCode, rec.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("recording invocation %q: %w", rec.Name, err)
	}
	return nil
}

// FinishRun closes out the run with its final status and totals.
func (s *Store) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time, total, failed, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, total = ?, failed = ?, skipped = ? WHERE id = ?`,
		finishedAt.UnixMilli(), status, total, failed, skipped, runID,
	)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, suite, analyzer, input, script, started_at, finished_at, status, total, failed, skipped
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Suite, &r.Analyzer, &r.Input, &r.Script,
			&started, &finished, &r.Status, &r.Total, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Invocations returns the run's invocation records in sequence order.
func (s *Store) Invocations(ctx context.Context, runID string) ([]InvocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, name, params_json, log_path, outcome, exit_code, duration_ms
		 FROM invocations WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	var out []InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		if err := rows.Scan(&rec.RunID, &rec.Seq, &rec.Name, &rec.ParamsJSON,
			&rec.LogPath, &rec.Outcome, &rec.ExitCode, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning invocation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
