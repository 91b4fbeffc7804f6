package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"prismakit/internal/logging"
)

// SQLite is a Store backed by a single SQLite table.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens (or creates) the database at path. Pass ":memory:" for
// an in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and avoids
	// "database is locked" between the poller and message handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLite{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("Opened key-value store at %s", path)
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (scope, key)
	);`)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Scope(scope Scope) KV { return &sqliteScope{s: s, scope: scope} }

type sqliteScope struct {
	s     *SQLite
	scope Scope
}

func (k *sqliteScope) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := k.s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, string(k.scope), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "get", Scope: k.scope, Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, &StorageError{Op: "get", Scope: k.scope, Key: key, Err: err}
	}
	return true, nil
}

func (k *sqliteScope) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &StorageError{Op: "set", Scope: k.scope, Key: key, Err: err}
	}
	_, err = k.s.db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(k.scope), key, string(raw), time.Now().UTC())
	if err != nil {
		return &StorageError{Op: "set", Scope: k.scope, Key: key, Err: err}
	}
	return nil
}
