package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the box-count balance for one (company, product) pair. It is
// the single source of truth for availability across sales, purchases and
// returns.
type Balance struct {
	ID        int64           `json:"id" db:"id"`
	CompanyID int64           `json:"company_id" db:"company_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Boxes     decimal.Decimal `json:"boxes" db:"boxes"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Direction marks a movement as adding to or removing from a balance.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// RefType identifies the business document behind a movement.
type RefType string

const (
	RefSale     RefType = "SALE"
	RefPurchase RefType = "PURCHASE"
	RefReturn   RefType = "RETURN"
	RefAdjust   RefType = "ADJUSTMENT"
)

// Movement is one append-only row in the stock movement log. Every balance
// mutation writes a movement in the same transaction.
type Movement struct {
	ID        int64           `json:"id" db:"id"`
	CompanyID int64           `json:"company_id" db:"company_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Qty       decimal.Decimal `json:"qty" db:"qty"`
	Direction Direction       `json:"direction" db:"direction"`
	RefType   RefType         `json:"ref_type" db:"ref_type"`
	RefID     int64           `json:"ref_id" db:"ref_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	CompanyID int64
	ProductID int64
	RefType   *RefType
	Limit     int
	Offset    int
}
