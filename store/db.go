// Package store persists the panel visibility state in SQLite. The record
// is shared across all tabs and written only by full overwrite, so there is
// no read-modify-write race to guard against.
//
// The opener applies production-safe pragmas via EXEC (driver-agnostic),
// each overridable through an Option:
//
//	foreign_keys = ON
//	journal_mode = WAL     (WithJournalMode)
//	busy_timeout = 10000   (WithBusyTimeout)
//	synchronous  = NORMAL  (WithSynchronous)
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	db, err := store.Open("codelution.db")
//
// In tests:
//
//	db := store.OpenMemory(t)
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Schema declares the single-record panel state table. The id=1 constraint
// makes the overwrite semantics explicit at the schema level.
const Schema = `
CREATE TABLE IF NOT EXISTS panel_state (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    sidebar_open      INTEGER NOT NULL DEFAULT 0,
    sidebar_url       TEXT NOT NULL DEFAULT '',
    last_state_change INTEGER NOT NULL DEFAULT 0
);
`

type openConfig struct {
	journalMode string
	busyTimeout time.Duration
	synchronous string
	maxOpen     int
}

// Option tunes the opener away from its defaults.
type Option func(*openConfig)

// WithJournalMode overrides the WAL default, e.g. "DELETE" for databases on
// filesystems that cannot take WAL's extra files.
func WithJournalMode(mode string) Option {
	return func(c *openConfig) { c.journalMode = mode }
}

// WithBusyTimeout overrides the 10s lock wait.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeout = d }
}

// WithSynchronous overrides the NORMAL durability level.
func WithSynchronous(level string) Option {
	return func(c *openConfig) { c.synchronous = level }
}

// WithMaxOpenConns caps the connection pool. In-memory databases need 1 so
// every query sees the same database.
func WithMaxOpenConns(n int) Option {
	return func(c *openConfig) { c.maxOpen = n }
}

// Open opens the SQLite database at path, creating parent directories, and
// applies pragmas and schema. The caller must blank-import a driver
// registering as "sqlite" (modernc.org/sqlite).
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := openConfig{
		journalMode: "WAL",
		busyTimeout: 10 * time.Second,
		synchronous: "NORMAL",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if cfg.maxOpen > 0 {
		db.SetMaxOpenConns(cfg.maxOpen)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.journalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory database for testing. MaxOpenConns(1)
// ensures every query hits the same in-memory database; Cleanup closes it.
func OpenMemory(t testing.TB) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
