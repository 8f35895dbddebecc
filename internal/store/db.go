package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database access layer for the postgres task store.
// It is implemented by both *sql.DB and *sql.Tx, so store code works with
// either a connection pool or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
