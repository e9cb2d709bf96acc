package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for receipts.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

const receiptColumns = `id, company_id, kind, side, counterparty_id, ref_id, currency,
	amount, paid_amount, remaining_amount, status, created_at, updated_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rec Receipt
	var amount, paid, remaining pgtype.Numeric
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.Kind, &rec.Side, &rec.CounterpartyID, &rec.RefID, &rec.Currency,
		&amount, &paid, &remaining, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return Receipt{}, err
	}
	rec.Amount = db.NumericToDecimal(amount)
	rec.PaidAmount = db.NumericToDecimal(paid)
	rec.RemainingAmount = db.NumericToDecimal(remaining)
	return rec, nil
}

// CreateReceipt inserts a receipt header through the given connection.
func CreateReceipt(ctx context.Context, conn db.DBTX, input IssueReceiptInput) (Receipt, error) {
	if input.CompanyID == 0 || input.CounterpartyID == 0 {
		return Receipt{}, shared.NewValidation("payments: company and counterparty required")
	}
	if !input.Amount.IsPositive() {
		return Receipt{}, shared.NewValidation("payments: amount must be positive")
	}
	if input.Currency == "" {
		return Receipt{}, shared.NewValidation("payments: currency required")
	}

	rec := Receipt{
		CompanyID:       input.CompanyID,
		Kind:            input.Kind,
		Side:            input.Side,
		CounterpartyID:  input.CounterpartyID,
		RefID:           input.RefID,
		Currency:        input.Currency,
		Amount:          input.Amount,
		Status:          StatusPending,
		RemainingAmount: input.Amount,
	}
	if input.Paid {
		rec.Status = StatusPaid
		rec.PaidAmount = input.Amount
		rec.RemainingAmount = rec.RemainingAmount.Sub(input.Amount)
	}

	query := `
		INSERT INTO payment_receipts (
			company_id, kind, side, counterparty_id, ref_id, currency,
			amount, paid_amount, remaining_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := conn.QueryRow(ctx, query,
		rec.CompanyID, rec.Kind, rec.Side, rec.CounterpartyID, rec.RefID, rec.Currency,
		db.DecimalToNumeric(rec.Amount), db.DecimalToNumeric(rec.PaidAmount),
		db.DecimalToNumeric(rec.RemainingAmount), rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("payments: create receipt: %w", err)
	}
	return rec, nil
}

// GetReceipt reads a receipt.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_receipts WHERE id = $1", receiptColumns)
	rec, err := scanReceipt(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, shared.NewNotFound("receipt", id)
	}
	return rec, err
}

// GetReceiptForUpdate reads a receipt with a row lock.
func (r *Repository) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_receipts WHERE id = $1 FOR UPDATE", receiptColumns)
	rec, err := scanReceipt(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, shared.NewNotFound("receipt", id)
	}
	return rec, err
}

// UpdateReceiptAmounts persists recomputed paid/remaining/status fields.
func (r *Repository) UpdateReceiptAmounts(ctx context.Context, rec Receipt) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payment_receipts
		SET paid_amount = $2, remaining_amount = $3, status = $4, updated_at = NOW()
		WHERE id = $1`,
		rec.ID, db.DecimalToNumeric(rec.PaidAmount), db.DecimalToNumeric(rec.RemainingAmount), rec.Status,
	)
	if err != nil {
		return fmt.Errorf("payments: update receipt: %w", err)
	}
	return nil
}

// InsertInstallment appends one installment row.
func (r *Repository) InsertInstallment(ctx context.Context, ins Installment) (int64, error) {
	var rate pgtype.Numeric
	if ins.ExchangeRate != nil {
		rate = db.DecimalToNumeric(*ins.ExchangeRate)
	}
	query := `
		INSERT INTO payment_installments (
			receipt_id, amount, exchange_rate, base_amount, treasury_id, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		ins.ReceiptID, db.DecimalToNumeric(ins.Amount), rate,
		db.DecimalToNumeric(ins.BaseAmount), ins.TreasuryID, ins.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("payments: insert installment: %w", err)
	}
	return id, nil
}

// ListInstallments returns a receipt's installments, oldest first.
func (r *Repository) ListInstallments(ctx context.Context, receiptID int64) ([]Installment, error) {
	query := `
		SELECT id, receipt_id, amount, exchange_rate, base_amount, treasury_id, created_by, created_at
		FROM payment_installments
		WHERE receipt_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Installment
	for rows.Next() {
		var ins Installment
		var amount, base pgtype.Numeric
		var rate pgtype.Numeric
		if err := rows.Scan(&ins.ID, &ins.ReceiptID, &amount, &rate, &base, &ins.TreasuryID, &ins.CreatedBy, &ins.CreatedAt); err != nil {
			return nil, err
		}
		ins.Amount = db.NumericToDecimal(amount)
		ins.BaseAmount = db.NumericToDecimal(base)
		if rate.Valid {
			val := db.NumericToDecimal(rate)
			ins.ExchangeRate = &val
		}
		result = append(result, ins)
	}
	return result, rows.Err()
}

// ListReceipts returns receipts for a company.
func (r *Repository) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	query := fmt.Sprintf("SELECT %s FROM payment_receipts WHERE company_id = $1", receiptColumns)
	args := []any{filter.CompanyID}
	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, *filter.Kind)
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

	var result []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
