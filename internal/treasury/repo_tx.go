package treasury

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// PgRepository is the production RepositoryPort backed by pgx.
type PgRepository struct {
	pool *pgxpool.Pool
	*Repository
}

// NewPgRepository constructs the production repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, Repository: NewRepository(pool)}
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewRepository(tx))
	})
}
