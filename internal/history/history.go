// Package history keeps a local record of past dispatches so that runs can
// be found again after their terminal output is gone.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded dispatch.
type Run struct {
	RunID      string
	Started    time.Time
	Kind       string // "local" or "batch"
	Command    string
	Jobs       int
	Commands   int
	FailedJobs int
	Duration   time.Duration
	ExitCode   int
	// Location is the results directory of a local run or the batch
	// directory of a batch run.
	Location string
}

// Store records runs in SQLite. A Store opened with an empty path is
// disabled and ignores every call.
type Store struct {
	db *sql.DB
}

// DefaultPath is the database in the user's config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(configDir, "sweep", "history.db"), nil
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		started TEXT NOT NULL,
		kind TEXT NOT NULL,
		command TEXT NOT NULL,
		jobs INTEGER NOT NULL,
		commands INTEGER NOT NULL,
		failed_jobs INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		location TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Enabled reports whether runs are being recorded.
func (s *Store) Enabled() bool { return s.db != nil }

// Record stores a run.
func (s *Store) Record(r Run) error {
	if s.db == nil {
		return nil
	}

	query := `
		INSERT INTO runs
		(run_id, started, kind, command, jobs, commands, failed_jobs, duration_ms, exit_code, location)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(
		query,
		r.RunID,
		r.Started.UTC().Format(time.RFC3339),
		r.Kind,
		r.Command,
		r.Jobs,
		r.Commands,
		r.FailedJobs,
		r.Duration.Milliseconds(),
		r.ExitCode,
		r.Location,
	)
	return err
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, started, kind, command, jobs, commands, failed_jobs, duration_ms, exit_code, location
		FROM runs
		ORDER BY started DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			duration int64
			location sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &r.Kind, &r.Command, &r.Jobs, &r.Commands,
			&r.FailedJobs, &duration, &r.ExitCode, &location); err != nil {
			return nil, err
		}
		r.Started, err = time.Parse(time.RFC3339, started)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", r.RunID, err)
		}
		r.Duration = time.Duration(duration) * time.Millisecond
		r.Location = location.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
