package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for account entries.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

// Post validates and appends one journal entry through the given connection.
// The counterparty balance row is atomically upserted and the entry snapshots
// the resulting balance, so replaying entries reconstructs it exactly.
func Post(ctx context.Context, conn db.DBTX, input EntryInput) (Entry, error) {
	if input.CompanyID == 0 || input.CounterpartyID == 0 {
		return Entry{}, shared.NewValidation("ledger: company and counterparty required")
	}
	if !input.Amount.IsPositive() {
		return Entry{}, shared.NewValidation("ledger: amount must be positive")
	}
	if input.Side != SideCustomer && input.Side != SideSupplier {
		return Entry{}, shared.NewValidation("ledger: unknown side %q", input.Side)
	}
	if input.Type != TypeDebit && input.Type != TypeCredit {
		return Entry{}, shared.NewValidation("ledger: unknown entry type %q", input.Type)
	}
	txDate := input.TransactionDate
	if txDate.IsZero() {
		txDate = time.Now().UTC()
	}

	delta := signedDelta(input.Side, input.Type, input.Amount)

	balanceQuery := `
		INSERT INTO account_balances (company_id, side, counterparty_id, balance, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (company_id, side, counterparty_id)
		DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance`

	var running pgtype.Numeric
	err := conn.QueryRow(ctx, balanceQuery,
		input.CompanyID, input.Side, input.CounterpartyID, db.DecimalToNumeric(delta),
	).Scan(&running)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: update balance: %w", err)
	}

	entryQuery := `
		INSERT INTO account_entries (
			company_id, side, counterparty_id, type, amount, running_balance,
			ref_type, ref_id, description, transaction_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING id, created_at`

	entry := Entry{
		CompanyID:       input.CompanyID,
		Side:            input.Side,
		CounterpartyID:  input.CounterpartyID,
		Type:            input.Type,
		Amount:          input.Amount,
		RunningBalance:  db.NumericToDecimal(running),
		RefType:         input.RefType,
		RefID:           input.RefID,
		Description:     input.Description,
		TransactionDate: txDate,
	}
	err = conn.QueryRow(ctx, entryQuery,
		entry.CompanyID, entry.Side, entry.CounterpartyID, entry.Type,
		db.DecimalToNumeric(entry.Amount), running,
		entry.RefType, entry.RefID, entry.Description, txDate,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return entry, nil
}

// GetEntry reads one journal row.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	query := `
		SELECT id, company_id, side, counterparty_id, type, amount, running_balance,
			ref_type, ref_id, description, transaction_date, created_at
		FROM account_entries WHERE id = $1`

	var e Entry
	var amount, running pgtype.Numeric
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.CompanyID, &e.Side, &e.CounterpartyID, &e.Type, &amount, &running,
		&e.RefType, &e.RefID, &e.Description, &e.TransactionDate, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, shared.NewNotFound("ledger entry", id)
	}
	if err != nil {
		return Entry{}, err
	}
	e.Amount = db.NumericToDecimal(amount)
	e.RunningBalance = db.NumericToDecimal(running)
	return e, nil
}

// Balance reads the current counterparty balance; missing rows read as zero.
func (r *Repository) Balance(ctx context.Context, companyID int64, side Side, counterpartyID int64) (decimal.Decimal, error) {
	query := `
		SELECT balance FROM account_balances
		WHERE company_id = $1 AND side = $2 AND counterparty_id = $3`

	var balance pgtype.Numeric
	err := r.db.QueryRow(ctx, query, companyID, side, counterpartyID).Scan(&balance)
	if err != nil {
		// No row means no postings yet.
		return decimal.Zero, nil
	}
	return db.NumericToDecimal(balance), nil
}

// ListEntries returns journal rows for a counterparty, oldest first so the
// running balance reads as a statement.
func (r *Repository) ListEntries(ctx context.Context, filter StatementFilter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT id, company_id, side, counterparty_id, type, amount, running_balance,
			ref_type, ref_id, description, transaction_date, created_at
		FROM account_entries
		WHERE company_id = $1 AND side = $2 AND counterparty_id = $3
		ORDER BY id
		LIMIT $4 OFFSET $5`

	rows, err := r.db.Query(ctx, query, filter.CompanyID, filter.Side, filter.CounterpartyID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var amount, running pgtype.Numeric
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.Side, &e.CounterpartyID, &e.Type, &amount, &running,
			&e.RefType, &e.RefID, &e.Description, &e.TransactionDate, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Amount = db.NumericToDecimal(amount)
		e.RunningBalance = db.NumericToDecimal(running)
		result = append(result, e)
	}
	return result, rows.Err()
}
