package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// MovementInput describes one stock mutation.
type MovementInput struct {
	CompanyID int64
	ProductID int64
	Qty       decimal.Decimal
	Direction Direction
	RefType   RefType
	RefID     int64
}

// Apply validates and applies one movement through the given connection,
// locking the balance row first. Callers that need several movements atomic
// with other writes pass their own transaction. Balances never go negative;
// a short outbound movement fails with InsufficientStockError.
func Apply(ctx context.Context, conn db.DBTX, input MovementInput) (Movement, error) {
	if input.CompanyID == 0 || input.ProductID == 0 {
		return Movement{}, shared.NewValidation("stock: company and product required")
	}
	if !input.Qty.IsPositive() {
		return Movement{}, shared.NewValidation("stock: quantity must be positive")
	}

	repo := NewRepository(conn)
	balance, err := repo.GetBalanceForUpdate(ctx, input.CompanyID, input.ProductID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Movement{}, err
	}

	delta := input.Qty
	if input.Direction == DirectionOut {
		if balance.Boxes.LessThan(input.Qty) {
			return Movement{}, &shared.InsufficientStockError{
				CompanyID: input.CompanyID,
				ProductID: input.ProductID,
				Available: balance.Boxes,
				Required:  input.Qty,
			}
		}
		delta = input.Qty.Neg()
	}

	if _, err := repo.AdjustBalance(ctx, input.CompanyID, input.ProductID, delta); err != nil {
		return Movement{}, err
	}

	m := Movement{
		CompanyID: input.CompanyID,
		ProductID: input.ProductID,
		Qty:       input.Qty,
		Direction: input.Direction,
		RefType:   input.RefType,
		RefID:     input.RefID,
	}
	id, err := repo.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, err
	}
	m.ID = id
	return m, nil
}

// Service exposes the stock ledger for standalone mutations and queries.
type Service struct {
	pool *pgxpool.Pool
	repo *Repository
}

// NewService constructs a stock service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, repo: NewRepository(pool)}
}

// Post applies a single movement in its own transaction.
func (s *Service) Post(ctx context.Context, input MovementInput) (Movement, error) {
	var m Movement
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		m, err = Apply(ctx, tx, input)
		return err
	})
	return m, err
}

// Balance returns the current balance for a pair; missing rows read as zero.
func (s *Service) Balance(ctx context.Context, companyID, productID int64) (Balance, error) {
	b, err := s.repo.GetBalance(ctx, companyID, productID)
	if errors.Is(err, ErrBalanceNotFound) {
		return Balance{CompanyID: companyID, ProductID: productID, Boxes: decimal.Zero}, nil
	}
	return b, err
}

// ListBalances returns all balances for a company.
func (s *Service) ListBalances(ctx context.Context, companyID int64) ([]Balance, error) {
	return s.repo.ListBalances(ctx, companyID)
}

// Movements lists the movement log for a pair.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.CompanyID == 0 || filter.ProductID == 0 {
		return nil, shared.NewValidation("stock: company and product required")
	}
	return s.repo.ListMovements(ctx, filter)
}
