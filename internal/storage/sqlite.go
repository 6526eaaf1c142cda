package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKV implements KV on a single SQLite table.
type SQLiteKV struct {
	db    *sql.DB
	owned bool

	// Prepared statements
	get *sql.Stmt
	put *sql.Stmt
}

// SQLiteOption configures OpenSQLiteKV.
type SQLiteOption func(*MigrationRunner)

// WithSQLiteJournalMode sets the journal mode applied before migrating.
func WithSQLiteJournalMode(mode string) SQLiteOption {
	return func(r *MigrationRunner) { r.WithJournalMode(mode) }
}

// OpenSQLiteKV opens (creating if needed) the database at path, runs
// migrations and returns a KV that closes the database on Close.
func OpenSQLiteKV(path string, opts ...SQLiteOption) (*SQLiteKV, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	runner := NewMigrationRunner(db)
	for _, opt := range opts {
		opt(runner)
	}
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	kv, err := NewSQLiteKV(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	kv.owned = true
	return kv, nil
}

// NewSQLiteKV wraps an already-opened and migrated database. The caller
// keeps ownership of db.
func NewSQLiteKV(db *sql.DB) (*SQLiteKV, error) {
	kv := &SQLiteKV{db: db}
	if err := kv.prepareStatements(); err != nil {
		kv.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return kv, nil
}

func (s *SQLiteKV) prepareStatements() error {
	var err error

	s.get, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	s.put, err = s.db.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}

	return nil
}

// Get returns the value stored under key.
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.get.QueryRowContext(ctx, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Put replaces the value under key in one statement.
func (s *SQLiteKV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.put.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// DB exposes the underlying database for status reporting.
func (s *SQLiteKV) DB() *sql.DB {
	return s.db
}

// Close releases the prepared statements, and the database if OpenSQLiteKV opened it.
func (s *SQLiteKV) Close() error {
	for _, stmt := range []*sql.Stmt{s.get, s.put} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.owned {
		return s.db.Close()
	}
	return nil
}
