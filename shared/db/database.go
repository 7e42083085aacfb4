// Package db holds the storage-agnostic connection and transaction helpers.
package db

import (
	"context"
	"database/sql"
)

// Database is a connection the content store can be opened on.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}

// Executor is the query surface shared by *sql.DB and *sql.Tx, so repository
// methods run unchanged inside or outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Executor = (*sql.DB)(nil)
	_ Executor = (*sql.Tx)(nil)
)
