// Package engine wraps the embedded SQL engine used for tenant-local
// storage. Each tenant instance owns exactly one Engine (one sqlite file).
package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Engine executes parameterized statements against one sqlite database.
type Engine struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// an ephemeral database in tests.
func Open(path string) (*Engine, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; the hosting model serializes all
	// logical operations per tenant anyway, and a single connection keeps
	// ":memory:" databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Engine{db: db}, nil
}

// Execute runs a statement that returns no rows.
func (e *Engine) Execute(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	return e.db.ExecContext(ctx, stmt, args...)
}

// Query runs a statement and returns its rows.
func (e *Engine) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, stmt, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (e *Engine) QueryRow(ctx context.Context, stmt string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, stmt, args...)
}

// Close closes the database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}
