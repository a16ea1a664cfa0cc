package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projecthub/pkg/db"
)

// TxRunner runs fn in a transaction that commits when fn returns nil.
type TxRunner func(ctx context.Context, fn func(tx pgx.Tx) error) error

// PoolTx adapts db.WithTx to a TxRunner.
func PoolTx(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(tx pgx.Tx) error) error {
		return db.WithTx(ctx, pool, fn)
	}
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID int64
	Role   string
}
