// Package tx carries an active SQL transaction through the context so that
// stores invoked inside a scoped transaction join it instead of opening
// their own connections.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Executor is the statement surface shared by *sql.DB and *sql.Tx. Stores
// issue their statements through it so the same code runs inside and
// outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores a SQL transaction in the context for downstream stores.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts the context-carried transaction if one is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Bind returns the context-carried transaction when present, fallback
// otherwise.
func Bind(ctx context.Context, fallback *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return fallback
}
