package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies the receivable/payable behind a receipt.
type Kind string

const (
	// KindSale tracks a customer receivable from a credit sale.
	KindSale Kind = "SALE"
	// KindPurchase tracks a supplier payable from a regular purchase.
	KindPurchase Kind = "PURCHASE"
	// KindMainPurchase tracks the branch's liability to its parent company
	// created by an inter-company mirror settlement.
	KindMainPurchase Kind = "MAIN_PURCHASE"
)

// Status of a receipt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Side mirrors the ledger side the receipt settles against.
type Side string

const (
	SideCustomer Side = "CUSTOMER"
	SideSupplier Side = "SUPPLIER"
)

// Receipt is a receivable/payable header settled via zero or more
// installments. Amount bookkeeping stays in the original currency; only
// treasury legs convert to base currency.
type Receipt struct {
	ID              int64           `json:"id" db:"id"`
	CompanyID       int64           `json:"company_id" db:"company_id"`
	Kind            Kind            `json:"kind" db:"kind"`
	Side            Side            `json:"side" db:"side"`
	CounterpartyID  int64           `json:"counterparty_id" db:"counterparty_id"`
	RefID           int64           `json:"ref_id" db:"ref_id"`
	Currency        string          `json:"currency" db:"currency"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	Status          Status          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Installment is one partial settlement. ExchangeRate is set only for
// foreign-currency receipts; BaseAmount is the treasury leg in base currency.
type Installment struct {
	ID           int64            `json:"id" db:"id"`
	ReceiptID    int64            `json:"receipt_id" db:"receipt_id"`
	Amount       decimal.Decimal  `json:"amount" db:"amount"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty" db:"exchange_rate"`
	BaseAmount   decimal.Decimal  `json:"base_amount" db:"base_amount"`
	TreasuryID   int64            `json:"treasury_id" db:"treasury_id"`
	CreatedBy    int64            `json:"created_by" db:"created_by"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// IssueReceiptInput creates a receipt header.
type IssueReceiptInput struct {
	CompanyID      int64
	Kind           Kind
	Side           Side
	CounterpartyID int64
	RefID          int64
	Currency       string
	Amount         decimal.Decimal
	// Paid marks the receipt settled at issue time (cash sales).
	Paid bool
}

// InstallmentRequest is the payload for AddInstallment.
type InstallmentRequest struct {
	Amount       decimal.Decimal  `json:"amount" validate:"required"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	Method       string           `json:"method" validate:"required,oneof=CASH BANK CARD"`
	TreasuryID   *int64           `json:"treasury_id,omitempty"`
}

// PayRequest settles the full remainder of a receipt.
type PayRequest struct {
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	Method       string           `json:"method" validate:"required,oneof=CASH BANK CARD"`
	TreasuryID   *int64           `json:"treasury_id,omitempty"`
}

// ListFilter narrows receipt listings.
type ListFilter struct {
	CompanyID int64
	Kind      *Kind
	Status    *Status
	Limit     int
	Offset    int
}
