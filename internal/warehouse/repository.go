package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for dispatch orders.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// CreateForSale opens a PENDING dispatch order inside the caller's
// transaction, typically the sale-approval transaction.
func CreateForSale(ctx context.Context, conn db.DBTX, saleID, companyID int64) (DispatchOrder, error) {
	var d DispatchOrder
	err := conn.QueryRow(ctx, `
		INSERT INTO dispatch_orders (sale_id, company_id, status, created_at, updated_at)
		VALUES ($1, $2, 'PENDING', NOW(), NOW())
		RETURNING id, sale_id, company_id, status, created_at, updated_at`,
		saleID, companyID,
	).Scan(&d.ID, &d.SaleID, &d.CompanyID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return DispatchOrder{}, fmt.Errorf("warehouse: create dispatch: %w", err)
	}
	return d, nil
}

// Get retrieves a dispatch order by id.
func (r *Repository) Get(ctx context.Context, id int64) (DispatchOrder, error) {
	var d DispatchOrder
	err := r.db.QueryRow(ctx, `
		SELECT id, sale_id, company_id, status, created_at, updated_at
		FROM dispatch_orders WHERE id = $1`, id,
	).Scan(&d.ID, &d.SaleID, &d.CompanyID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DispatchOrder{}, shared.NewNotFound("dispatch order", id)
	}
	return d, err
}

// GetBySale retrieves the dispatch order of a sale.
func (r *Repository) GetBySale(ctx context.Context, saleID int64) (DispatchOrder, error) {
	var d DispatchOrder
	err := r.db.QueryRow(ctx, `
		SELECT id, sale_id, company_id, status, created_at, updated_at
		FROM dispatch_orders WHERE sale_id = $1`, saleID,
	).Scan(&d.ID, &d.SaleID, &d.CompanyID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DispatchOrder{}, shared.NewNotFound("dispatch order", saleID)
	}
	return d, err
}

// UpdateStatus moves a dispatch order to the given status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status DispatchStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE dispatch_orders SET status = $2, updated_at = NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("dispatch order", id)
	}
	return nil
}

// List returns dispatch orders for a company, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]DispatchOrder, error) {
	query := `
		SELECT id, sale_id, company_id, status, created_at, updated_at
		FROM dispatch_orders WHERE company_id = $1`
	args := []any{filter.CompanyID}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DispatchOrder
	for rows.Next() {
		var d DispatchOrder
		if err := rows.Scan(&d.ID, &d.SaleID, &d.CompanyID, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
