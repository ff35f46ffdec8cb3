// Package state provides SQLite-based persistence for the orchestration
// engine. All multi-row mutations run inside store transactions; the
// store's transactional isolation is the correctness mechanism for
// concurrent engine instances, not in-process locking.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded mutation finds the row in a
// state that does not permit the mutation. Callers translate this into
// their own error taxonomy (invalid transition, lost assignment race).
var ErrConflict = errors.New("conflicting state")

// DB wraps an SQLite database connection with engine-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// DefaultDBPath returns the default database location, honoring XDG_DATA_HOME.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "foreman", "foreman.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// One connection serializes writers, so concurrent transactions
	// queue instead of failing with SQLITE_BUSY, and the pragmas above
	// apply to every statement.
	conn.SetMaxOpenConns(1)

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Agents},
		{3, migrationV3FileLocks},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	title TEXT NOT NULL,
	description TEXT,
	kind TEXT NOT NULL DEFAULT 'code',
	required_capability TEXT,
	priority INTEGER NOT NULL DEFAULT 5,
	status TEXT NOT NULL DEFAULT 'pending',
	current_iteration INTEGER NOT NULL DEFAULT 0,
	max_iterations INTEGER NOT NULL DEFAULT 10,
	assigned_agent_id TEXT,
	rule_score REAL NOT NULL DEFAULT 0,
	secondary_score REAL,
	final_score REAL NOT NULL DEFAULT 0,
	assessment_method TEXT,
	human_wait_started_at DATETIME,
	human_timeout_minutes INTEGER NOT NULL DEFAULT 15,
	escalated INTEGER NOT NULL DEFAULT 0,
	output TEXT,
	error TEXT,
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_agent_id ON tasks(assigned_agent_id);
`

const migrationV2Agents = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	capability TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'idle',
	current_task_id TEXT,
	completed_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	credits_used REAL NOT NULL DEFAULT 0.0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
CREATE INDEX IF NOT EXISTS idx_agents_capability ON agents(capability);
`

const migrationV3FileLocks = `
CREATE TABLE IF NOT EXISTS file_locks (
	path TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	acquired_at DATETIME NOT NULL,
	expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_file_locks_task_id ON file_locks(task_id);
CREATE INDEX IF NOT EXISTS idx_file_locks_agent_id ON file_locks(agent_id);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatNullableTime formats an optional time.Time for SQLite storage.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
