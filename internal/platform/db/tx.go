package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx runs fn inside a REPEATABLE READ transaction. The ledger's
// balance assertion reads back rows written earlier in the same
// transaction, so anything weaker risks validating against a torn view.
func WithTx(ctx context.Context, pool Beginner, fn func(pgx.Tx) error) error {
	return WithTxOpts(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithTxOpts runs fn inside a transaction with the given options. Lock-then
// -recheck flows want READ COMMITTED so statements after the lock see rows
// committed by the writer they waited on. fn's error is returned as-is so
// callers can match sentinel errors. Rollback is deferred: a panic inside
// fn must not leave the transaction dangling on the connection.
func WithTxOpts(ctx context.Context, pool Beginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}
