package treasury

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a treasury.
type Type string

const (
	TypeCompany Type = "COMPANY"
	TypeGeneral Type = "GENERAL"
	TypeBank    Type = "BANK"
)

// Treasury is a cash box or bank account holding a running balance. The
// balance always equals the balanceAfter of the most recent transaction.
type Treasury struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Type      Type            `json:"type" db:"type"`
	CompanyID *int64          `json:"company_id,omitempty" db:"company_id"`
	Currency  string          `json:"currency" db:"currency"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Direction of a treasury transaction.
type Direction string

const (
	DirectionDeposit    Direction = "DEPOSIT"
	DirectionWithdrawal Direction = "WITHDRAWAL"
	DirectionTransfer   Direction = "TRANSFER"
)

// Source enumerates the originating business event.
type Source string

const (
	SourceSaleCash    Source = "SALE_CASH"
	SourceInstallment Source = "RECEIPT_INSTALLMENT"
	SourceReturn      Source = "RETURN_REFUND"
	SourceTransfer    Source = "TREASURY_TRANSFER"
	SourceManual      Source = "MANUAL"
)

// RefType identifies the document behind a transaction.
type RefType string

const (
	RefSale        RefType = "SALE"
	RefReceipt     RefType = "RECEIPT"
	RefInstallment RefType = "INSTALLMENT"
	RefReturn      RefType = "RETURN"
	RefTransfer    RefType = "TRANSFER"
	RefManual      RefType = "MANUAL"
)

// Transaction is one append-only log row. balanceBefore/balanceAfter make
// the running balance independently reconstructible by replay.
type Transaction struct {
	ID            int64           `json:"id" db:"id"`
	TreasuryID    int64           `json:"treasury_id" db:"treasury_id"`
	Direction     Direction       `json:"direction" db:"direction"`
	Source        Source          `json:"source" db:"source"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	RefType       RefType         `json:"ref_type" db:"ref_type"`
	RefID         int64           `json:"ref_id" db:"ref_id"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// PostInput describes one posting.
type PostInput struct {
	TreasuryID  int64
	Amount      decimal.Decimal
	Direction   Direction
	Source      Source
	RefType     RefType
	RefID       int64
	Description string
}

// PaymentMethod routes settlements into treasuries.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodBank PaymentMethod = "BANK"
	MethodCard PaymentMethod = "CARD"
)
