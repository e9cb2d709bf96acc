package intercompany

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the settlement
// outbox and the counterparty registry.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a repository over the given connection source.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

const outboxColumns = `id, sale_id, branch_company_id, parent_company_id, status, attempts, last_error, created_at, settled_at`

func scanOutbox(row pgx.Row) (OutboxEntry, error) {
	var e OutboxEntry
	var lastError pgtype.Text
	var settledAt pgtype.Timestamptz
	err := row.Scan(&e.ID, &e.SaleID, &e.BranchCompanyID, &e.ParentCompanyID,
		&e.Status, &e.Attempts, &lastError, &e.CreatedAt, &settledAt)
	if err != nil {
		return OutboxEntry{}, err
	}
	if lastError.Valid {
		e.LastError = &lastError.String
	}
	if settledAt.Valid {
		e.SettledAt = &settledAt.Time
	}
	return e, nil
}

// InsertOutbox writes a settlement intent through the given connection,
// typically the sale-approval transaction.
func InsertOutbox(ctx context.Context, conn db.DBTX, saleID, branchCompanyID, parentCompanyID int64) (OutboxEntry, error) {
	query := fmt.Sprintf(`
		INSERT INTO intercompany_outbox (id, sale_id, branch_company_id, parent_company_id, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 'PENDING', 0, NOW())
		RETURNING %s`, outboxColumns)
	e, err := scanOutbox(conn.QueryRow(ctx, query, uuid.New(), saleID, branchCompanyID, parentCompanyID))
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("intercompany: insert outbox: %w", err)
	}
	return e, nil
}

// GetOutboxForUpdate locks an outbox entry for the duration of a settlement
// transaction.
func (r *Repository) GetOutboxForUpdate(ctx context.Context, id uuid.UUID) (OutboxEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM intercompany_outbox WHERE id = $1 FOR UPDATE", outboxColumns)
	e, err := scanOutbox(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboxEntry{}, shared.NewNotFound("settlement", id)
	}
	return e, err
}

// GetOutbox reads an outbox entry without locking it.
func (r *Repository) GetOutbox(ctx context.Context, id uuid.UUID) (OutboxEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM intercompany_outbox WHERE id = $1", outboxColumns)
	e, err := scanOutbox(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboxEntry{}, shared.NewNotFound("settlement", id)
	}
	return e, err
}

// MarkSettled flips an entry to SETTLED.
func (r *Repository) MarkSettled(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE intercompany_outbox
		SET status = 'SETTLED', settled_at = NOW()
		WHERE id = $1`, id)
	return err
}

// MarkFailed records a failed attempt. The entry stays PENDING so the
// worker retries it; it moves to FAILED once attempts exhaust the retry
// budget.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, exhausted bool) error {
	status := OutboxPending
	if exhausted {
		status = OutboxFailed
	}
	_, err := r.db.Exec(ctx, `
		UPDATE intercompany_outbox
		SET status = $2, attempts = attempts + 1, last_error = $3
		WHERE id = $1`, id, status, cause)
	return err
}

// ListPending returns unsettled entries, oldest first, for the sweep job.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM intercompany_outbox
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1`, outboxColumns)
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// EnsureCounterparty looks up or creates the registry row for a company
// pair. Concurrent creators race on the unique key; the loser re-reads the
// winner's row.
func (r *Repository) EnsureCounterparty(ctx context.Context, kind CounterpartyKind, ownerCompanyID, representsCompanyID int64, name string) (Counterparty, error) {
	const lookup = `
		SELECT id, kind, owner_company_id, represents_company_id, name, created_at
		FROM intercompany_counterparties
		WHERE kind = $1 AND owner_company_id = $2 AND represents_company_id = $3`

	var c Counterparty
	err := r.db.QueryRow(ctx, lookup, kind, ownerCompanyID, representsCompanyID).
		Scan(&c.ID, &c.Kind, &c.OwnerCompanyID, &c.RepresentsCompanyID, &c.Name, &c.CreatedAt)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Counterparty{}, err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO intercompany_counterparties (kind, owner_company_id, represents_company_id, name, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (kind, owner_company_id, represents_company_id) DO NOTHING`,
		kind, ownerCompanyID, representsCompanyID, name)
	if err != nil {
		return Counterparty{}, err
	}

	err = r.db.QueryRow(ctx, lookup, kind, ownerCompanyID, representsCompanyID).
		Scan(&c.ID, &c.Kind, &c.OwnerCompanyID, &c.RepresentsCompanyID, &c.Name, &c.CreatedAt)
	if err != nil {
		return Counterparty{}, fmt.Errorf("intercompany: ensure counterparty: %w", err)
	}
	return c, nil
}

// OriginSale reads the originating sale header and its parent-sourced
// lines. The settlement only mirrors lines that actually consumed parent
// stock.
func (r *Repository) OriginSale(ctx context.Context, saleID int64) (OriginSale, error) {
	var s OriginSale
	err := r.db.QueryRow(ctx, `
		SELECT id, company_id, invoice_number FROM sales WHERE id = $1`, saleID,
	).Scan(&s.ID, &s.CompanyID, &s.InvoiceNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return OriginSale{}, shared.NewNotFound("sale", saleID)
	}
	if err != nil {
		return OriginSale{}, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT product_id, qty, parent_unit_price
		FROM sale_lines
		WHERE sale_id = $1 AND is_from_parent_company
		ORDER BY id`, saleID)
	if err != nil {
		return OriginSale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OriginLine
		var qty, price pgtype.Numeric
		if err := rows.Scan(&line.ProductID, &qty, &price); err != nil {
			return OriginSale{}, err
		}
		line.Qty = db.NumericToDecimal(qty)
		line.ParentUnitPrice = db.NumericToDecimal(price)
		s.Lines = append(s.Lines, line)
	}
	return s, rows.Err()
}

// InsertMirrorSale writes the synthetic parent-company sale billing the
// branch at parent prices. It is born APPROVED and auto-generated.
func (r *Repository) InsertMirrorSale(ctx context.Context, origin OriginSale, parentCompanyID, branchCustomerID int64) (int64, error) {
	var saleID int64
	total := mirrorTotal(origin.Lines)
	err := r.db.QueryRow(ctx, `
		INSERT INTO sales (
			company_id, customer_id, invoice_number, total, status, sale_type,
			paid_amount, remaining_amount, is_auto_generated, origin_sale_id,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, 'APPROVED', 'CREDIT', 0, $4, TRUE, $5, 0, NOW(), NOW())
		RETURNING id`,
		parentCompanyID, branchCustomerID, "IC-"+origin.InvoiceNumber,
		db.DecimalToNumeric(total), origin.ID,
	).Scan(&saleID)
	if err != nil {
		return 0, fmt.Errorf("intercompany: insert mirror sale: %w", err)
	}

	for _, line := range origin.Lines {
		sub := line.Qty.Mul(line.ParentUnitPrice)
		_, err := r.db.Exec(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, parent_unit_price, sub_total, is_from_parent_company)
			VALUES ($1, $2, $3, $4, $4, $5, FALSE)`,
			saleID, line.ProductID, db.DecimalToNumeric(line.Qty),
			db.DecimalToNumeric(line.ParentUnitPrice), db.DecimalToNumeric(sub))
		if err != nil {
			return 0, fmt.Errorf("intercompany: insert mirror sale line: %w", err)
		}
	}
	return saleID, nil
}

// LinkOriginSale writes the settlement-triangle back references onto the
// originating sale.
func (r *Repository) LinkOriginSale(ctx context.Context, saleID, parentSaleID, branchPurchaseID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE sales
		SET related_parent_sale_id = $2, related_branch_purchase_id = $3, updated_at = NOW()
		WHERE id = $1`, saleID, parentSaleID, branchPurchaseID)
	return err
}
