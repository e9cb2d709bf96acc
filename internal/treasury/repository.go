package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for treasuries.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

func scanTreasury(row pgx.Row) (Treasury, error) {
	var t Treasury
	var companyID pgtype.Int8
	var balance pgtype.Numeric
	err := row.Scan(&t.ID, &t.Name, &t.Type, &companyID, &t.Currency, &balance, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Treasury{}, shared.NewNotFound("treasury", 0)
	}
	if err != nil {
		return Treasury{}, err
	}
	if companyID.Valid {
		t.CompanyID = &companyID.Int64
	}
	t.Balance = db.NumericToDecimal(balance)
	return t, nil
}

const treasuryColumns = "id, name, type, company_id, currency, balance, created_at, updated_at"

// Get reads a treasury without locking.
func (r *Repository) Get(ctx context.Context, id int64) (Treasury, error) {
	query := fmt.Sprintf("SELECT %s FROM treasuries WHERE id = $1", treasuryColumns)
	t, err := scanTreasury(r.db.QueryRow(ctx, query, id))
	if shared.KindOf(err) == shared.KindNotFound {
		return Treasury{}, shared.NewNotFound("treasury", id)
	}
	return t, err
}

// GetForUpdate reads a treasury with a row lock for read-modify-write.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (Treasury, error) {
	query := fmt.Sprintf("SELECT %s FROM treasuries WHERE id = $1 FOR UPDATE", treasuryColumns)
	t, err := scanTreasury(r.db.QueryRow(ctx, query, id))
	if shared.KindOf(err) == shared.KindNotFound {
		return Treasury{}, shared.NewNotFound("treasury", id)
	}
	return t, err
}

// FindCompanyTreasury resolves the COMPANY-type treasury of a company.
func (r *Repository) FindCompanyTreasury(ctx context.Context, companyID int64) (Treasury, error) {
	query := fmt.Sprintf("SELECT %s FROM treasuries WHERE company_id = $1 AND type = 'COMPANY' LIMIT 1", treasuryColumns)
	return scanTreasury(r.db.QueryRow(ctx, query, companyID))
}

// Apply persists one posting: the recomputed balance and its paired log
// row. Callers hold the row lock via GetForUpdate and have already shaped
// the before/after pair.
func (r *Repository) Apply(ctx context.Context, txn Transaction) (Transaction, error) {
	if _, err := r.db.Exec(ctx,
		`UPDATE treasuries SET balance = $2, updated_at = NOW() WHERE id = $1`,
		txn.TreasuryID, db.DecimalToNumeric(txn.BalanceAfter),
	); err != nil {
		return Transaction{}, fmt.Errorf("treasury: update balance: %w", err)
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO treasury_transactions (
			treasury_id, direction, source, amount, balance_before, balance_after,
			ref_type, ref_id, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at`,
		txn.TreasuryID, txn.Direction, txn.Source, db.DecimalToNumeric(txn.Amount),
		db.DecimalToNumeric(txn.BalanceBefore), db.DecimalToNumeric(txn.BalanceAfter),
		txn.RefType, txn.RefID, txn.Description,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("treasury: insert transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the transaction log, oldest first.
func (r *Repository) ListTransactions(ctx context.Context, treasuryID int64, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT id, treasury_id, direction, source, amount, balance_before, balance_after,
			ref_type, ref_id, description, created_at
		FROM treasury_transactions
		WHERE treasury_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, treasuryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		var txn Transaction
		var amount, before, after pgtype.Numeric
		if err := rows.Scan(
			&txn.ID, &txn.TreasuryID, &txn.Direction, &txn.Source, &amount, &before, &after,
			&txn.RefType, &txn.RefID, &txn.Description, &txn.CreatedAt,
		); err != nil {
			return nil, err
		}
		txn.Amount = db.NumericToDecimal(amount)
		txn.BalanceBefore = db.NumericToDecimal(before)
		txn.BalanceAfter = db.NumericToDecimal(after)
		result = append(result, txn)
	}
	return result, rows.Err()
}

// Post locks the treasury and applies one posting through the given
// connection. Withdrawals beyond the balance are rejected.
func Post(ctx context.Context, conn db.DBTX, input PostInput) (Transaction, error) {
	return post(ctx, NewRepository(conn), input)
}
