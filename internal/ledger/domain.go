package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side selects which book the counterparty lives in.
type Side string

const (
	SideCustomer Side = "CUSTOMER"
	SideSupplier Side = "SUPPLIER"
)

// EntryType is the double-entry direction of a journal row.
type EntryType string

const (
	TypeDebit  EntryType = "DEBIT"
	TypeCredit EntryType = "CREDIT"
)

// RefType identifies the business document behind an entry.
type RefType string

const (
	RefSale     RefType = "SALE"
	RefPurchase RefType = "PURCHASE"
	RefPayment  RefType = "PAYMENT"
	RefReturn   RefType = "RETURN"
	RefAdjust   RefType = "ADJUSTMENT"
)

// Entry is one append-only journal row. RunningBalance snapshots the
// counterparty balance immediately after this entry; rows are never mutated
// or deleted, only reversed by opposite entries.
type Entry struct {
	ID              int64           `json:"id" db:"id"`
	CompanyID       int64           `json:"company_id" db:"company_id"`
	Side            Side            `json:"side" db:"side"`
	CounterpartyID  int64           `json:"counterparty_id" db:"counterparty_id"`
	Type            EntryType       `json:"type" db:"type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	RunningBalance  decimal.Decimal `json:"running_balance" db:"running_balance"`
	RefType         RefType         `json:"ref_type" db:"ref_type"`
	RefID           int64           `json:"ref_id" db:"ref_id"`
	Description     string          `json:"description" db:"description"`
	TransactionDate time.Time       `json:"transaction_date" db:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// EntryInput describes a posting request.
type EntryInput struct {
	CompanyID       int64
	Side            Side
	CounterpartyID  int64
	Type            EntryType
	Amount          decimal.Decimal
	RefType         RefType
	RefID           int64
	Description     string
	TransactionDate time.Time
}

// signedDelta maps an entry to its effect on the running balance. Customer
// balances grow with debits (receivable), supplier balances with credits
// (payable).
func signedDelta(side Side, typ EntryType, amount decimal.Decimal) decimal.Decimal {
	switch {
	case side == SideCustomer && typ == TypeDebit,
		side == SideSupplier && typ == TypeCredit:
		return amount
	default:
		return amount.Neg()
	}
}

// StatementFilter narrows statement listings.
type StatementFilter struct {
	CompanyID      int64
	Side           Side
	CounterpartyID int64
	Limit          int
	Offset         int
}
