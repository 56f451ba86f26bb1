// Package storage provides the persistence backends used by the property
// stores: a SQLite key-value table for local overrides and a YAML file
// for the synced snapshot.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is a local database holding persisted property values. The same
// handle is shared with the scrobble retry cache.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS properties (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (namespace, key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// DB exposes the underlying handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Namespace returns a key-value view scoped to one store.
func (s *SQLite) Namespace(ns string) *Namespace {
	return &Namespace{db: s.db, ns: ns}
}

// Namespace is a key-value view of the properties table. It satisfies
// bean.LocalBackend.
type Namespace struct {
	db *sql.DB
	ns string
}

func (n *Namespace) Get(key string) (string, bool, error) {
	var value string
	err := n.db.QueryRow(
		"SELECT value FROM properties WHERE namespace = ? AND key = ?",
		n.ns, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s/%s: %w", n.ns, key, err)
	}
	return value, true, nil
}

func (n *Namespace) Set(key, value string) error {
	_, err := n.db.Exec(`
		INSERT INTO properties (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = excluded.value, updated_at = strftime('%s', 'now')
	`, n.ns, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", n.ns, key, err)
	}
	return nil
}

func (n *Namespace) Remove(key string) error {
	_, err := n.db.Exec("DELETE FROM properties WHERE namespace = ? AND key = ?", n.ns, key)
	if err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", n.ns, key, err)
	}
	return nil
}
