package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS model_entries (
	version         TEXT PRIMARY KEY,
	major           INTEGER NOT NULL,
	minor           INTEGER NOT NULL,
	patch           INTEGER NOT NULL,
	metrics_json    TEXT NOT NULL,
	released_at     TEXT NOT NULL,
	description     TEXT,
	artifact_path   TEXT,
	is_active       INTEGER NOT NULL DEFAULT 0,
	rolled_back     INTEGER NOT NULL DEFAULT 0,
	rollback_reason TEXT
);

CREATE TABLE IF NOT EXISTS rollbacks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	success       INTEGER NOT NULL,
	from_version  TEXT NOT NULL,
	to_version    TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_executions (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	version       TEXT,
	detail        TEXT,
	degradation   REAL NOT NULL DEFAULT 0,
	sample_count  INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS training_samples (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	features      BLOB NOT NULL,
	label         TEXT NOT NULL,
	source_file   TEXT,
	line_number   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	model_version TEXT,
	variable      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	confidence    REAL NOT NULL,
	method        TEXT NOT NULL,
	rule_kind     TEXT,
	ml_kind       TEXT,
	ml_confidence REAL,
	reasoning     TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists registry history, pipeline executions, training samples and
// the decision log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps :memory: databases shared across calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the decision log.
func (s *Store) DB() *sql.DB {
	return s.db
}
