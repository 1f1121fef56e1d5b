// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provenance (
	key TEXT PRIMARY KEY,
	record TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`

// SQLiteStore persists records as JSON documents in a single table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// OpenSQLite opens (creating if needed) the database at path and its parent
// directory.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writers are serialized; concurrent provisioning shares one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Name returns the backend name.
func (s *SQLiteStore) Name() string { return BackendSQLite }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Available returns nil until the store is closed.
func (s *SQLiteStore) Available() error {
	if s.closed.Load() {
		return &UnavailableError{Backend: BackendSQLite, Reason: "database is closed"}
	}
	return nil
}

// Put upserts the record for key.
func (s *SQLiteStore) Put(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO provenance (key, record, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, s.classify(err))
	}
	return nil
}

// Get reads the record for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM provenance WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record %s: %w", key, s.classify(err))
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return rec, true, nil
}

// Keys returns every key in sorted order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM provenance ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", s.classify(err))
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// classify turns failures of the database itself (closed handle, file that
// cannot be opened, written or read) into an *UnavailableError. Context
// cancellation and constraint errors are returned unchanged.
func (s *SQLiteStore) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return &UnavailableError{Backend: BackendSQLite, Reason: err.Error()}
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_IOERR,
			sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_FULL, sqlite3.SQLITE_PERM:
			return &UnavailableError{Backend: BackendSQLite, Reason: err.Error()}
		}
	}
	return err
}
