package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for purchases.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

const purchaseColumns = `id, company_id, supplier_id, invoice_number, total, status,
	affects_inventory, is_auto_generated, origin_sale_id, created_by, created_at, updated_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var total pgtype.Numeric
	var originSaleID pgtype.Int8
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.SupplierID, &p.InvoiceNumber, &total, &p.Status,
		&p.AffectsInventory, &p.IsAutoGenerated, &originSaleID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Purchase{}, err
	}
	p.Total = db.NumericToDecimal(total)
	if originSaleID.Valid {
		p.OriginSaleID = &originSaleID.Int64
	}
	return p, nil
}

// Insert writes a purchase header and its lines through the given connection.
func Insert(ctx context.Context, conn db.DBTX, p Purchase) (Purchase, error) {
	var originSaleID pgtype.Int8
	if p.OriginSaleID != nil {
		originSaleID = pgtype.Int8{Int64: *p.OriginSaleID, Valid: true}
	}

	query := `
		INSERT INTO purchases (
			company_id, supplier_id, invoice_number, total, status,
			affects_inventory, is_auto_generated, origin_sale_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := conn.QueryRow(ctx, query,
		p.CompanyID, p.SupplierID, p.InvoiceNumber, db.DecimalToNumeric(p.Total), p.Status,
		p.AffectsInventory, p.IsAutoGenerated, originSaleID, p.CreatedBy,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Purchase{}, fmt.Errorf("purchase: insert: %w", err)
	}

	for i := range p.Lines {
		line := &p.Lines[i]
		line.PurchaseID = p.ID
		err := conn.QueryRow(ctx, `
			INSERT INTO purchase_lines (purchase_id, product_id, qty, unit_price, sub_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			p.ID, line.ProductID, db.DecimalToNumeric(line.Qty),
			db.DecimalToNumeric(line.UnitPrice), db.DecimalToNumeric(line.SubTotal),
		).Scan(&line.ID)
		if err != nil {
			return Purchase{}, fmt.Errorf("purchase: insert line: %w", err)
		}
	}
	return p, nil
}

// Get retrieves a purchase with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	query := fmt.Sprintf("SELECT %s FROM purchases WHERE id = $1", purchaseColumns)
	p, err := scanPurchase(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, shared.NewNotFound("purchase", id)
	}
	if err != nil {
		return Purchase{}, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, purchase_id, product_id, qty, unit_price, sub_total
		FROM purchase_lines WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var qty, price, sub pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.PurchaseID, &line.ProductID, &qty, &price, &sub); err != nil {
			return Purchase{}, err
		}
		line.Qty = db.NumericToDecimal(qty)
		line.UnitPrice = db.NumericToDecimal(price)
		line.SubTotal = db.NumericToDecimal(sub)
		p.Lines = append(p.Lines, line)
	}
	return p, rows.Err()
}

// UpdateStatusIfDraft flips DRAFT to the given status; reports whether a row
// was updated, which is the optimistic double-approval guard.
func (r *Repository) UpdateStatusIfDraft(ctx context.Context, id int64, status Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE purchases SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'`, id, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// List returns purchases for a company, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	query := fmt.Sprintf("SELECT %s FROM purchases WHERE company_id = $1", purchaseColumns)
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

	var result []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// LineTotals computes sub-totals and the invoice total for inputs.
func LineTotals(lines []LineInput) ([]Line, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, shared.NewValidation("purchase: at least one line required")
	}
	total := decimal.Zero
	out := make([]Line, 0, len(lines))
	for _, in := range lines {
		if in.ProductID == 0 {
			return nil, decimal.Zero, shared.NewValidation("purchase: product required on every line")
		}
		if !in.Qty.IsPositive() {
			return nil, decimal.Zero, shared.NewValidation("purchase: qty must be positive")
		}
		if in.UnitPrice.IsNegative() {
			return nil, decimal.Zero, shared.NewValidation("purchase: unit price cannot be negative")
		}
		sub := in.Qty.Mul(in.UnitPrice)
		out = append(out, Line{
			ProductID: in.ProductID,
			Qty:       in.Qty,
			UnitPrice: in.UnitPrice,
			SubTotal:  sub,
		})
		total = total.Add(sub)
	}
	return out, total, nil
}
