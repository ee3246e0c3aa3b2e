package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for cnav's navigation history and
// search log.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS navigation (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  origin_file     TEXT NOT NULL,
  origin_line     INTEGER NOT NULL,
  origin_col      INTEGER NOT NULL,
  target_file     TEXT NOT NULL,
  target_line     INTEGER NOT NULL,
  target_col      INTEGER NOT NULL,
  created_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS searches (
  id              TEXT PRIMARY KEY,
  mode            TEXT NOT NULL,
  spelling        TEXT NOT NULL,
  origin_file     TEXT,
  target_file     TEXT,
  target_line     INTEGER,
  target_col      INTEGER,
  candidates      INTEGER NOT NULL DEFAULT 0,
  faults          INTEGER NOT NULL DEFAULT 0,
  timed_out       INTEGER NOT NULL DEFAULT 0,
  started_at      TIMESTAMP NOT NULL,
  duration_ms     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_navigation_target ON navigation(target_file);
CREATE INDEX IF NOT EXISTS idx_searches_started ON searches(started_at);
`
