// Package history persists build-run summaries to a local SQLite database for
// the `history` CLI command. The build core never touches this store; the CLI
// layer appends after each run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ConnectionMaster/flutter/internal/gradle"
)

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Run is one persisted build-run row.
type Run struct {
	RunID     string
	Artifact  string
	Mode      string
	Outcome   string
	Attempts  int
	Duration  time.Duration
	Commit    string
	CreatedAt time.Time
}

// Open creates or opens a history database. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		artifact TEXT NOT NULL,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		commit_sha TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		signature TEXT,
		backoff_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_run_id ON attempts(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one run summary and its attempt log.
func (s *Store) Append(ctx context.Context, summary *gradle.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, artifact, mode, outcome, attempts, duration_ms, commit_sha, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		summary.RunID, string(summary.Artifact), string(summary.Mode), string(summary.Outcome),
		len(summary.Attempts), summary.Duration.Milliseconds(), summary.Commit, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, att := range summary.Attempts {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO attempts (run_id, idx, exit_code, signature, backoff_ms) VALUES (?, ?, ?, ?, ?)",
			summary.RunID, att.Index, att.ExitCode, att.Signature, att.Backoff.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns the newest runs, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, artifact, mode, outcome, attempts, duration_ms, commit_sha, created_at FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs, createdAt int64
		if err := rows.Scan(&r.RunID, &r.Artifact, &r.Mode, &r.Outcome, &r.Attempts, &durationMs, &r.Commit, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AttemptsFor returns the attempt log of one run in attempt order.
func (s *Store) AttemptsFor(ctx context.Context, runID string) ([]gradle.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT idx, exit_code, signature, backoff_ms FROM attempts WHERE run_id = ? ORDER BY idx",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []gradle.AttemptRecord
	for rows.Next() {
		var a gradle.AttemptRecord
		var backoffMs int64
		if err := rows.Scan(&a.Index, &a.ExitCode, &a.Signature, &backoffMs); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Backoff = time.Duration(backoffMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
