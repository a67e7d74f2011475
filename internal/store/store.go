package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite ledger of scan runs, derived documents and markers.
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

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              TEXT PRIMARY KEY,
  kind            TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  documents       INTEGER DEFAULT 0,
  markers         INTEGER DEFAULT 0,
  failures        INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
  path            TEXT PRIMARY KEY,
  source          TEXT,
  kind            TEXT NOT NULL,
  status          TEXT NOT NULL,
  written_at      TIMESTAMP NOT NULL,
  run_id          TEXT REFERENCES runs(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS markers (
  id              INTEGER PRIMARY KEY,
  marker          TEXT NOT NULL,
  document        TEXT NOT NULL,
  kind            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_markers_marker ON markers(marker);
CREATE INDEX IF NOT EXISTS idx_markers_document ON markers(document);
`
