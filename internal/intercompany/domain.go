package intercompany

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CounterpartyKind tags a registry row with the role it plays in its
// owner's books.
type CounterpartyKind string

const (
	// KindBranchCustomer represents a branch company as a customer in the
	// parent company's books.
	KindBranchCustomer CounterpartyKind = "BRANCH_CUSTOMER"
	// KindParentSupplier represents the parent company as a supplier in a
	// branch company's books.
	KindParentSupplier CounterpartyKind = "PARENT_SUPPLIER"
)

// Counterparty is one row of the typed inter-company counterparty
// registry. Exactly one row exists per (owner, represented, kind) triple,
// so the settlement flow can look counterparts up deterministically
// instead of encoding identity into contact fields.
type Counterparty struct {
	ID                  int64            `json:"id" db:"id"`
	Kind                CounterpartyKind `json:"kind" db:"kind"`
	OwnerCompanyID      int64            `json:"owner_company_id" db:"owner_company_id"`
	RepresentsCompanyID int64            `json:"represents_company_id" db:"represents_company_id"`
	Name                string           `json:"name" db:"name"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// OutboxStatus of a settlement record.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSettled OutboxStatus = "SETTLED"
	OutboxFailed  OutboxStatus = "FAILED"
)

// OutboxEntry is the durable settlement intent written in the same
// transaction as a branch sale approval whose lines consumed parent stock.
// A worker drains entries asynchronously, so a crash between the approval
// commit and the mirror write loses nothing.
type OutboxEntry struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	SaleID          int64        `json:"sale_id" db:"sale_id"`
	BranchCompanyID int64        `json:"branch_company_id" db:"branch_company_id"`
	ParentCompanyID int64        `json:"parent_company_id" db:"parent_company_id"`
	Status          OutboxStatus `json:"status" db:"status"`
	Attempts        int          `json:"attempts" db:"attempts"`
	LastError       *string      `json:"last_error,omitempty" db:"last_error"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	SettledAt       *time.Time   `json:"settled_at,omitempty" db:"settled_at"`
}

// OriginLine is one parent-sourced line of the originating sale, read at
// settlement time.
type OriginLine struct {
	ProductID       int64
	Qty             decimal.Decimal
	ParentUnitPrice decimal.Decimal
}

// OriginSale is the slice of the originating sale the settlement needs.
type OriginSale struct {
	ID            int64
	CompanyID     int64
	InvoiceNumber string
	Lines         []OriginLine
}

// Settlement summarises a completed mirror write.
type Settlement struct {
	OutboxID         uuid.UUID       `json:"outbox_id"`
	OriginSaleID     int64           `json:"origin_sale_id"`
	ParentSaleID     int64           `json:"parent_sale_id"`
	BranchPurchaseID int64           `json:"branch_purchase_id"`
	Total            decimal.Decimal `json:"total"`
}
