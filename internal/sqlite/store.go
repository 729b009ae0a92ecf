// Package sqlite implements the storage side of the importer on SQLite:
// connection and transaction ownership, the schema registry, row
// materialization, catalog reads, and the foreign-key rebuild pass.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrTxOpen is returned when a connection-level setting is changed while a
// transaction is open. SQLite ignores PRAGMA foreign_keys inside a transaction.
var ErrTxOpen = errors.New("transaction already open")

// Store owns the database handle for one SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path. The parent
// directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: database path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// DB returns the underlying handle for read-only inspection.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session reserves a single connection from the pool. Everything an import
// run does goes through one Session so that PRAGMAs and the open transaction
// apply to the same connection.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reserve connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Session is one connection plus at most one open transaction. It is not
// safe for concurrent use.
type Session struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// ApplyPragmas sets the journal and synchronous modes for bulk loading.
func (s *Session) ApplyPragmas(ctx context.Context, journalMode, synchronous string) error {
	if _, err := s.conn.ExecContext(ctx, "PRAGMA journal_mode="+strings.ToUpper(journalMode)); err != nil {
		return fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, "PRAGMA synchronous="+strings.ToUpper(synchronous)); err != nil {
		return fmt.Errorf("set synchronous: %w", err)
	}
	return nil
}

// SetForeignKeys toggles foreign-key enforcement for this connection.
func (s *Session) SetForeignKeys(ctx context.Context, on bool) error {
	if s.tx != nil {
		return ErrTxOpen
	}
	stmt := "PRAGMA foreign_keys = OFF"
	if on {
		stmt = "PRAGMA foreign_keys = ON"
	}
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("set foreign_keys: %w", err)
	}
	return nil
}

// Begin opens a transaction.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrTxOpen
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction. It is a no-op without one.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the open transaction. It is a no-op without one.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// InTx reports whether a transaction is open.
func (s *Session) InTx() bool { return s.tx != nil }

// ExecContext runs a statement inside the open transaction, or directly on
// the connection when none is open.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.tx.ExecContext(ctx, query, args...)
	}
	return s.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the open transaction, or directly on the
// connection when none is open.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.QueryContext(ctx, query, args...)
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// Close rolls back any open transaction and releases the connection.
func (s *Session) Close() error {
	rbErr := s.Rollback()
	if err := s.conn.Close(); err != nil {
		return err
	}
	return rbErr
}
