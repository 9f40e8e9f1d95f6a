// Package index provides a SQLite-backed highlight index with optional FTS5
// full-text search. It is a cache over the library files and can always be
// rebuilt from them.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	hash    TEXT PRIMARY KEY,
	name    TEXT NOT NULL DEFAULT '',
	author  TEXT NOT NULL DEFAULT '',
	ts      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS notes (
	hash       TEXT NOT NULL,
	cfi        TEXT NOT NULL,
	page       INTEGER NOT NULL DEFAULT 0,
	text       TEXT NOT NULL DEFAULT '',
	annotation TEXT NOT NULL DEFAULT '',
	modified   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (hash, cfi)
);

CREATE TABLE IF NOT EXISTS sources (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notes_hash ON notes(hash);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
