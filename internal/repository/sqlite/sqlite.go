// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed. Use ":memory:" for a throwaway database in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// The pool is limited to one connection: SQLite allows a single writer, and an
// in-memory database only exists inside the connection that created it.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the directory and activity tables.
// CREATE ... IF NOT EXISTS keeps it safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS members (
			id    INTEGER PRIMARY KEY,
			login TEXT NOT NULL UNIQUE COLLATE NOCASE
		);
	`)
	if err != nil {
		return fmt.Errorf("creating members table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS repositories (
			id        INTEGER PRIMARY KEY,
			full_name TEXT NOT NULL UNIQUE COLLATE NOCASE
		);
	`)
	if err != nil {
		return fmt.Errorf("creating repositories table: %w", err)
	}

	// One row per (member, repository, type, date).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			member_id     INTEGER NOT NULL,
			repository_id INTEGER NOT NULL,
			type          TEXT NOT NULL,
			activity_date TEXT NOT NULL,
			count         INTEGER NOT NULL DEFAULT 0,
			additions     INTEGER NOT NULL DEFAULT 0,
			deletions     INTEGER NOT NULL DEFAULT 0,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(member_id, repository_id, type, activity_date)
		);
		CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(activity_date);
	`)
	if err != nil {
		return fmt.Errorf("creating activities table: %w", err)
	}
	return nil
}
