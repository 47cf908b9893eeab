package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// TxFromContext retrieves the active transaction from context, if any.
// Repositories check this before falling back to the pool so that service
// methods can compose multi-table writes into one atomic unit.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithinTx runs fn inside a database transaction. The transaction is stored
// in the context passed to fn; any error (or panic) rolls the whole
// transaction back, otherwise it commits.
func WithinTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		// Already inside a transaction: join it.
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TxFunc runs fn inside a transaction. Services depend on this type instead
// of the pool so tests can substitute a passthrough.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxFunc binds WithinTx to a pool.
func NewTxFunc(pool *pgxpool.Pool) TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return WithinTx(ctx, pool, fn)
	}
}
