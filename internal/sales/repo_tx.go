package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/intercompany"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
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

// AvailableStock reads a locked balance; a missing row reads as zero.
func (t *txRepo) AvailableStock(ctx context.Context, companyID, productID int64) (decimal.Decimal, error) {
	b, err := stock.NewRepository(t.tx).GetBalanceForUpdate(ctx, companyID, productID)
	if errors.Is(err, stock.ErrBalanceNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return b.Boxes, nil
}

func (t *txRepo) ApplyStock(ctx context.Context, input stock.MovementInput) error {
	_, err := stock.Apply(ctx, t.tx, input)
	return err
}

func (t *txRepo) CreateDispatch(ctx context.Context, saleID, companyID int64) error {
	_, err := warehouse.CreateForSale(ctx, t.tx, saleID, companyID)
	return err
}

func (t *txRepo) InsertOutbox(ctx context.Context, saleID, branchCompanyID, parentCompanyID int64) (uuid.UUID, error) {
	entry, err := intercompany.InsertOutbox(ctx, t.tx, saleID, branchCompanyID, parentCompanyID)
	if err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}
