package intercompany

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchase"
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
		return fn(ctx, &txRepo{Repository: NewRepository(tx), tx: tx})
	})
}

type txRepo struct {
	*Repository
	tx pgx.Tx
}

func (t *txRepo) InsertMirrorPurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	return purchase.Insert(ctx, t.tx, p)
}

func (t *txRepo) CreateReceipt(ctx context.Context, input payments.IssueReceiptInput) (payments.Receipt, error) {
	return payments.CreateReceipt(ctx, t.tx, input)
}

func (t *txRepo) PostLedger(ctx context.Context, input ledger.EntryInput) (ledger.Entry, error) {
	return ledger.Post(ctx, t.tx, input)
}
