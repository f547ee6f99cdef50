// Package store persists scheduler history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database shared by the history, feedback, job and
// event stores.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.RWMutex
}

// Open opens (creating) the database at path and initializes its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{path: path, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS task_history (
			id TEXT PRIMARY KEY,
			world TEXT NOT NULL,
			bot TEXT NOT NULL,
			kind TEXT NOT NULL,
			priority INTEGER NOT NULL,
			status TEXT NOT NULL,
			issued_by TEXT,
			job_id TEXT,
			params TEXT,
			params_encrypted TEXT,
			failure_reason TEXT,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT
		)`,
		"CREATE INDEX IF NOT EXISTS idx_history_bot ON task_history(world, bot)",
		"CREATE INDEX IF NOT EXISTS idx_history_job ON task_history(job_id)",
		"CREATE INDEX IF NOT EXISTS idx_history_completed ON task_history(completed_at)",
		`CREATE TABLE IF NOT EXISTS behavior_stats (
			behavior TEXT PRIMARY KEY,
			successes INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			last_success INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			world TEXT NOT NULL,
			owner TEXT NOT NULL,
			status TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			world TEXT,
			bot TEXT,
			task_id TEXT,
			job_id TEXT,
			old_status TEXT,
			new_status TEXT,
			message TEXT,
			timestamp TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)",
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}
