package sales

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

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

const saleColumns = `id, company_id, customer_id, invoice_number, total, discount_amount, status,
	sale_type, payment_method, paid_amount, remaining_amount, is_auto_generated, origin_sale_id,
	related_parent_sale_id, related_branch_purchase_id, created_by, approved_by, approved_at,
	created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var customerID, originSaleID, parentSaleID, branchPurchaseID, approvedBy pgtype.Int8
	var paymentMethod pgtype.Text
	var approvedAt pgtype.Timestamptz
	var total, discount, paid, remaining pgtype.Numeric

	err := row.Scan(
		&s.ID, &s.CompanyID, &customerID, &s.InvoiceNumber, &total, &discount, &s.Status,
		&s.SaleType, &paymentMethod, &paid, &remaining, &s.IsAutoGenerated, &originSaleID,
		&parentSaleID, &branchPurchaseID, &s.CreatedBy, &approvedBy, &approvedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return Sale{}, err
	}

	s.Total = db.NumericToDecimal(total)
	s.DiscountAmount = db.NumericToDecimal(discount)
	s.PaidAmount = db.NumericToDecimal(paid)
	s.RemainingAmount = db.NumericToDecimal(remaining)
	s.IsFullyPaid = s.Status == StatusApproved && !s.RemainingAmount.IsPositive()
	if customerID.Valid {
		s.CustomerID = &customerID.Int64
	}
	if paymentMethod.Valid {
		s.PaymentMethod = &paymentMethod.String
	}
	if originSaleID.Valid {
		s.OriginSaleID = &originSaleID.Int64
	}
	if parentSaleID.Valid {
		s.RelatedParentSaleID = &parentSaleID.Int64
	}
	if branchPurchaseID.Valid {
		s.RelatedBranchPurchaseID = &branchPurchaseID.Int64
	}
	if approvedBy.Valid {
		s.ApprovedBy = &approvedBy.Int64
	}
	if approvedAt.Valid {
		s.ApprovedAt = &approvedAt.Time
	}
	return s, nil
}

// Insert writes a sale header and its lines.
func (r *Repository) Insert(ctx context.Context, s Sale) (Sale, error) {
	var customerID pgtype.Int8
	if s.CustomerID != nil {
		customerID = pgtype.Int8{Int64: *s.CustomerID, Valid: true}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO sales (
			company_id, customer_id, invoice_number, total, discount_amount, status,
			sale_type, paid_amount, remaining_amount, is_auto_generated, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		s.CompanyID, customerID, s.InvoiceNumber, db.DecimalToNumeric(s.Total),
		db.DecimalToNumeric(s.DiscountAmount), s.Status, s.SaleType,
		db.DecimalToNumeric(s.PaidAmount), db.DecimalToNumeric(s.RemainingAmount),
		s.IsAutoGenerated, s.CreatedBy,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: insert: %w", err)
	}

	if err := r.insertLines(ctx, s.ID, s.Lines); err != nil {
		return Sale{}, err
	}
	for i := range s.Lines {
		s.Lines[i].SaleID = s.ID
	}
	return r.Get(ctx, s.ID)
}

func (r *Repository) insertLines(ctx context.Context, saleID int64, lines []Line) error {
	for i := range lines {
		line := &lines[i]
		err := r.db.QueryRow(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, parent_unit_price,
				discount_amount, sub_total, is_from_parent_company)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			saleID, line.ProductID, db.DecimalToNumeric(line.Qty),
			db.DecimalToNumeric(line.UnitPrice), db.DecimalToNumeric(line.ParentUnitPrice),
			db.DecimalToNumeric(line.DiscountAmount), db.DecimalToNumeric(line.SubTotal),
			line.IsFromParentCompany,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("sales: insert line: %w", err)
		}
	}
	return nil
}

// Get retrieves a sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	query := fmt.Sprintf("SELECT %s FROM sales WHERE id = $1", saleColumns)
	s, err := scanSale(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.NewNotFound("sale", id)
	}
	if err != nil {
		return Sale{}, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, sale_id, product_id, qty, unit_price, parent_unit_price,
			discount_amount, sub_total, is_from_parent_company
		FROM sale_lines WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		var qty, price, parentPrice, discount, sub pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &qty, &price,
			&parentPrice, &discount, &sub, &line.IsFromParentCompany); err != nil {
			return Sale{}, err
		}
		line.Qty = db.NumericToDecimal(qty)
		line.UnitPrice = db.NumericToDecimal(price)
		line.ParentUnitPrice = db.NumericToDecimal(parentPrice)
		line.DiscountAmount = db.NumericToDecimal(discount)
		line.SubTotal = db.NumericToDecimal(sub)
		s.Lines = append(s.Lines, line)
	}
	return s, rows.Err()
}

// ReplaceLines swaps the full line set of a draft sale and updates the
// header totals.
func (r *Repository) ReplaceLines(ctx context.Context, saleID int64, lines []Line, total, discount decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("sales: replace lines: %w", err)
	}
	if err := r.insertLines(ctx, saleID, lines); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		UPDATE sales SET total = $2, discount_amount = $3, remaining_amount = $2, updated_at = NOW()
		WHERE id = $1`, saleID, db.DecimalToNumeric(total), db.DecimalToNumeric(discount))
	return err
}

// ApproveIfDraft flips DRAFT to APPROVED with the settlement terms, in one
// optimistic update. It reports whether a row changed; false means a
// concurrent approver won.
func (r *Repository) ApproveIfDraft(ctx context.Context, id int64, saleType SaleType, paymentMethod *string, paid, remaining decimal.Decimal, approvedBy int64) (bool, error) {
	var method pgtype.Text
	if paymentMethod != nil {
		method = pgtype.Text{String: *paymentMethod, Valid: true}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE sales
		SET status = 'APPROVED', sale_type = $2, payment_method = $3,
			paid_amount = $4, remaining_amount = $5,
			approved_by = $6, approved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'`,
		id, saleType, method, db.DecimalToNumeric(paid), db.DecimalToNumeric(remaining), approvedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelIfDraft flips DRAFT to CANCELLED; reports whether a row changed.
func (r *Repository) CancelIfDraft(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE sales SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLineFromParent persists the allocation fallback's source correction.
func (r *Repository) MarkLineFromParent(ctx context.Context, lineID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sale_lines SET is_from_parent_company = TRUE WHERE id = $1`, lineID)
	return err
}

// AmountsForUpdate locks a sale header and reads its settlement amounts
// for a read-modify-write.
func (r *Repository) AmountsForUpdate(ctx context.Context, saleID int64) (total, paid, remaining decimal.Decimal, err error) {
	var t, p, rem pgtype.Numeric
	err = r.db.QueryRow(ctx, `
		SELECT total, paid_amount, remaining_amount FROM sales WHERE id = $1 FOR UPDATE`, saleID,
	).Scan(&t, &p, &rem)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.Zero, decimal.Zero, shared.NewNotFound("sale", saleID)
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return db.NumericToDecimal(t), db.NumericToDecimal(p), db.NumericToDecimal(rem), nil
}

// SetAmounts writes rebalanced settlement amounts. Callers hold the row
// lock via AmountsForUpdate.
func (r *Repository) SetAmounts(ctx context.Context, saleID int64, total, paid, remaining decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sales
		SET total = $2, paid_amount = $3, remaining_amount = $4, updated_at = NOW()
		WHERE id = $1`, saleID,
		db.DecimalToNumeric(total), db.DecimalToNumeric(paid), db.DecimalToNumeric(remaining))
	return err
}

// List returns sales, newest first. A zero CompanyID lists across
// companies, which only system users may do.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	query := fmt.Sprintf("SELECT %s FROM sales WHERE 1=1", saleColumns)
	var args []any
	if filter.CompanyID != 0 {
		query += fmt.Sprintf(" AND company_id = $%d", len(args)+1)
		args = append(args, filter.CompanyID)
	}
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

	var result []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ProductOwner resolves a product's owning company and its owner-side unit
// price, snapshotted into lines as the parent price.
func (r *Repository) ProductOwner(ctx context.Context, productID int64) (int64, decimal.Decimal, error) {
	var ownerID int64
	var price pgtype.Numeric
	err := r.db.QueryRow(ctx, `
		SELECT owner_company_id, unit_price FROM products WHERE id = $1`, productID,
	).Scan(&ownerID, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, decimal.Zero, shared.NewNotFound("product", productID)
	}
	if err != nil {
		return 0, decimal.Zero, err
	}
	return ownerID, db.NumericToDecimal(price), nil
}

// ParentCompany resolves a company's parent; nil when the company is the
// root of its ownership tree.
func (r *Repository) ParentCompany(ctx context.Context, companyID int64) (*int64, error) {
	var parent pgtype.Int8
	err := r.db.QueryRow(ctx, `
		SELECT parent_company_id FROM companies WHERE id = $1`, companyID,
	).Scan(&parent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFound("company", companyID)
	}
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		return &parent.Int64, nil
	}
	return nil, nil
}
