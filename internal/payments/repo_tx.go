package payments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
)

// PgRepository is the production RepositoryPort backed by pgx.
type PgRepository struct {
	pool *pgxpool.Pool
	repo *Repository
}

// NewPgRepository constructs the production repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, repo: NewRepository(pool)}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *PgRepository) CreateReceipt(ctx context.Context, input IssueReceiptInput) (Receipt, error) {
	return CreateReceipt(ctx, r.pool, input)
}

func (r *PgRepository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return r.repo.GetReceipt(ctx, id)
}

func (r *PgRepository) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	return r.repo.ListReceipts(ctx, filter)
}

func (r *PgRepository) ListInstallments(ctx context.Context, receiptID int64) ([]Installment, error) {
	return r.repo.ListInstallments(ctx, receiptID)
}

func (t *txRepo) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return NewRepository(t.tx).GetReceiptForUpdate(ctx, id)
}

func (t *txRepo) InsertInstallment(ctx context.Context, ins Installment) (int64, error) {
	return NewRepository(t.tx).InsertInstallment(ctx, ins)
}

func (t *txRepo) UpdateReceiptAmounts(ctx context.Context, rec Receipt) error {
	return NewRepository(t.tx).UpdateReceiptAmounts(ctx, rec)
}

func (t *txRepo) ResolveTreasury(ctx context.Context, companyID int64, method treasury.PaymentMethod, explicitID *int64) (treasury.Treasury, error) {
	return treasury.ResolveForMethodTx(ctx, t.tx, companyID, method, explicitID)
}

func (t *txRepo) PostTreasury(ctx context.Context, input treasury.PostInput) (treasury.Transaction, error) {
	return treasury.Post(ctx, t.tx, input)
}

func (t *txRepo) PostLedger(ctx context.Context, input ledger.EntryInput) (ledger.Entry, error) {
	return ledger.Post(ctx, t.tx, input)
}
