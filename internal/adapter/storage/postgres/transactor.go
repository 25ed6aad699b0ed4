package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor hands out the transactions that state transitions run in.
// Isolation is read committed: transition safety comes from the FOR UPDATE
// row locks the repositories take, not from a stricter isolation level.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor on top of the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a read committed transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}
