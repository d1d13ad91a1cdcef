package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS timestamps (
	source TEXT NOT NULL,
	key    TEXT NOT NULL,
	ts     INTEGER NOT NULL,
	PRIMARY KEY (source, key)
);`

// SQLite keeps timestamps in one table shared by every source; each
// SQLite value is a view scoped to one source.
type SQLite struct {
	db     *sql.DB
	source string
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Scope returns a store sharing the same database but keyed under source.
func (s *SQLite) Scope(source string) *SQLite {
	return &SQLite{db: s.db, source: source}
}

func (s *SQLite) Get(key string) (int64, bool) {
	var ts int64
	err := s.db.QueryRow(
		`SELECT ts FROM timestamps WHERE source = ? AND key = ?`,
		s.source, key,
	).Scan(&ts)
	if err != nil {
		return 0, false
	}

	return ts, true
}

func (s *SQLite) Put(key string, ts int64) error {
	_, err := s.db.Exec(
		`INSERT INTO timestamps (source, key, ts) VALUES (?, ?, ?)
		 ON CONFLICT(source, key) DO UPDATE SET ts = excluded.ts`,
		s.source, key, ts,
	)
	if err != nil {
		return fmt.Errorf("put timestamp %s/%s: %w", s.source, key, err)
	}

	return nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return errors.New("store already closed")
	}

	err := s.db.Close()
	s.db = nil

	return err
}
