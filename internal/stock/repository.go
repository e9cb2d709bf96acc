package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ErrBalanceNotFound indicates no balance row exists yet for the pair.
var ErrBalanceNotFound = errors.New("stock: balance not found")

// Repository provides PostgreSQL backed persistence for the stock ledger.
// It runs against a pool or joins a caller transaction via db.DBTX.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// GetBalance reads the current box balance without locking.
func (r *Repository) GetBalance(ctx context.Context, companyID, productID int64) (Balance, error) {
	return r.getBalance(ctx, companyID, productID, false)
}

// GetBalanceForUpdate reads the balance with a row lock, creating contention
// scope for the caller's transaction.
func (r *Repository) GetBalanceForUpdate(ctx context.Context, companyID, productID int64) (Balance, error) {
	return r.getBalance(ctx, companyID, productID, true)
}

func (r *Repository) getBalance(ctx context.Context, companyID, productID int64, lock bool) (Balance, error) {
	query := `
		SELECT id, company_id, product_id, boxes, updated_at
		FROM stock_balances
		WHERE company_id = $1 AND product_id = $2`
	if lock {
		query += " FOR UPDATE"
	}

	var b Balance
	var boxes pgtype.Numeric
	err := r.db.QueryRow(ctx, query, companyID, productID).Scan(
		&b.ID, &b.CompanyID, &b.ProductID, &boxes, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrBalanceNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	b.Boxes = db.NumericToDecimal(boxes)
	return b, nil
}

// AdjustBalance applies a signed delta to the pair's balance, creating the
// row on first use. It returns the new balance.
func (r *Repository) AdjustBalance(ctx context.Context, companyID, productID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		INSERT INTO stock_balances (company_id, product_id, boxes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (company_id, product_id)
		DO UPDATE SET boxes = stock_balances.boxes + EXCLUDED.boxes, updated_at = NOW()
		RETURNING boxes`

	var boxes pgtype.Numeric
	err := r.db.QueryRow(ctx, query, companyID, productID, db.DecimalToNumeric(delta)).Scan(&boxes)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stock: adjust balance: %w", err)
	}
	return db.NumericToDecimal(boxes), nil
}

// InsertMovement appends one row to the movement log.
func (r *Repository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	query := `
		INSERT INTO stock_movements (company_id, product_id, qty, direction, ref_type, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		m.CompanyID, m.ProductID, db.DecimalToNumeric(m.Qty), m.Direction, m.RefType, m.RefID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("stock: insert movement: %w", err)
	}
	return id, nil
}

// ListMovements returns movement log entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `
		SELECT id, company_id, product_id, qty, direction, ref_type, ref_id, created_at
		FROM stock_movements
		WHERE company_id = $1 AND product_id = $2`
	args := []any{filter.CompanyID, filter.ProductID}
	if filter.RefType != nil {
		query += fmt.Sprintf(" AND ref_type = $%d", len(args)+1)
		args = append(args, *filter.RefType)
	}
	query += " ORDER BY id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Movement
	for rows.Next() {
		var m Movement
		var qty pgtype.Numeric
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.ProductID, &qty, &m.Direction, &m.RefType, &m.RefID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Qty = db.NumericToDecimal(qty)
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListBalances returns all balances for a company.
func (r *Repository) ListBalances(ctx context.Context, companyID int64) ([]Balance, error) {
	query := `
		SELECT id, company_id, product_id, boxes, updated_at
		FROM stock_balances
		WHERE company_id = $1
		ORDER BY product_id`

	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Balance
	for rows.Next() {
		var b Balance
		var boxes pgtype.Numeric
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.ProductID, &boxes, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Boxes = db.NumericToDecimal(boxes)
		result = append(result, b)
	}
	return result, rows.Err()
}
