package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a sale.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
)

// SaleType decides settlement at approval time.
type SaleType string

const (
	// TypeCash settles the full total immediately and issues a PAID receipt.
	TypeCash SaleType = "CASH"
	// TypeCredit leaves the total outstanding behind a PENDING receipt.
	TypeCredit SaleType = "CREDIT"
)

// Sale is the aggregate header. Mirror sales synthesized by the
// inter-company settlement carry IsAutoGenerated and are closed to direct
// mutation; RelatedParentSaleID/RelatedBranchPurchaseID form the
// settlement triangle back to the mirror documents.
type Sale struct {
	ID                      int64           `json:"id" db:"id"`
	CompanyID               int64           `json:"company_id" db:"company_id"`
	CustomerID              *int64          `json:"customer_id,omitempty" db:"customer_id"`
	InvoiceNumber           string          `json:"invoice_number" db:"invoice_number"`
	Total                   decimal.Decimal `json:"total" db:"total"`
	DiscountAmount          decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	Status                  Status          `json:"status" db:"status"`
	SaleType                SaleType        `json:"sale_type" db:"sale_type"`
	PaymentMethod           *string         `json:"payment_method,omitempty" db:"payment_method"`
	PaidAmount              decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	RemainingAmount         decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	IsFullyPaid             bool            `json:"is_fully_paid" db:"-"`
	IsAutoGenerated         bool            `json:"is_auto_generated" db:"is_auto_generated"`
	OriginSaleID            *int64          `json:"origin_sale_id,omitempty" db:"origin_sale_id"`
	RelatedParentSaleID     *int64          `json:"related_parent_sale_id,omitempty" db:"related_parent_sale_id"`
	RelatedBranchPurchaseID *int64          `json:"related_branch_purchase_id,omitempty" db:"related_branch_purchase_id"`
	CreatedBy               int64           `json:"created_by" db:"created_by"`
	ApprovedBy              *int64          `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt              *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at" db:"updated_at"`
	Lines                   []Line          `json:"lines,omitempty" db:"-"`
}

// Line is one sold product position. Qty is counted in boxes.
// ParentUnitPrice is the owning company's price, snapshotted for margin
// tracking and for pricing the mirror documents; IsFromParentCompany marks
// the line as sourced from parent stock and may be corrected during
// approval by the allocation fallback.
type Line struct {
	ID                  int64           `json:"id" db:"id"`
	SaleID              int64           `json:"sale_id" db:"sale_id"`
	ProductID           int64           `json:"product_id" db:"product_id"`
	Qty                 decimal.Decimal `json:"qty" db:"qty"`
	UnitPrice           decimal.Decimal `json:"unit_price" db:"unit_price"`
	ParentUnitPrice     decimal.Decimal `json:"parent_unit_price" db:"parent_unit_price"`
	DiscountAmount      decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	SubTotal            decimal.Decimal `json:"sub_total" db:"sub_total"`
	IsFromParentCompany bool            `json:"is_from_parent_company" db:"is_from_parent_company"`
}

// CreateInput describes a new draft sale.
type CreateInput struct {
	CompanyID     int64
	CustomerID    *int64
	InvoiceNumber string
	Lines         []LineInput
	CreatedBy     int64
}

// LineInput is one requested line.
type LineInput struct {
	ProductID           int64           `json:"product_id" validate:"required,gt=0"`
	Qty                 decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice           decimal.Decimal `json:"unit_price" validate:"required"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	IsFromParentCompany bool            `json:"is_from_parent_company"`
}

// ApproveRequest carries the settlement terms chosen at approval.
type ApproveRequest struct {
	SaleType      SaleType `json:"sale_type" validate:"required,oneof=CASH CREDIT"`
	PaymentMethod string   `json:"payment_method" validate:"omitempty,oneof=CASH BANK CARD"`
	TreasuryID    *int64   `json:"treasury_id,omitempty"`
}

// ReturnInput describes returned boxes against an approved sale.
type ReturnInput struct {
	SaleID    int64
	Lines     []ReturnLine
	CreatedBy int64
}

// ReturnLine returns part of one sale line.
type ReturnLine struct {
	LineID int64           `json:"line_id" validate:"required,gt=0"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
}

// Return summarises a processed return. Refund is the already-settled
// portion paid back out of the treasury.
type Return struct {
	SaleID int64           `json:"sale_id"`
	Total  decimal.Decimal `json:"total"`
	Refund decimal.Decimal `json:"refund"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	CompanyID int64
	Status    *Status
	Limit     int
	Offset    int
}

// settleReturn rebalances a sale's amounts after a return worth amount.
// The credit consumes the outstanding remainder first; whatever the
// customer had already paid for comes off paid and is owed back as a
// refund. paid + remaining == total holds before and after.
func settleReturn(total, paid, remaining, amount decimal.Decimal) (newTotal, newPaid, newRemaining, refund decimal.Decimal) {
	newTotal = total.Sub(amount)
	fromRemaining := decimal.Min(remaining, amount)
	newRemaining = remaining.Sub(fromRemaining)
	refund = amount.Sub(fromRemaining)
	newPaid = paid.Sub(refund)
	return newTotal, newPaid, newRemaining, refund
}
