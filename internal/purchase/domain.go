package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a purchase.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
)

// Purchase mirrors the sale shape for goods received. AffectsInventory
// distinguishes real stock-affecting purchases from the synthetic branch
// purchase created by the inter-company mirror generator, which must not
// double-decrement inventory already removed by the originating sale.
type Purchase struct {
	ID               int64           `json:"id" db:"id"`
	CompanyID        int64           `json:"company_id" db:"company_id"`
	SupplierID       int64           `json:"supplier_id" db:"supplier_id"`
	InvoiceNumber    string          `json:"invoice_number" db:"invoice_number"`
	Total            decimal.Decimal `json:"total" db:"total"`
	Status           Status          `json:"status" db:"status"`
	AffectsInventory bool            `json:"affects_inventory" db:"affects_inventory"`
	IsAutoGenerated  bool            `json:"is_auto_generated" db:"is_auto_generated"`
	OriginSaleID     *int64          `json:"origin_sale_id,omitempty" db:"origin_sale_id"`
	CreatedBy        int64           `json:"created_by" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
	Lines            []Line          `json:"lines,omitempty" db:"-"`
}

// Line is one purchased product position.
type Line struct {
	ID         int64           `json:"id" db:"id"`
	PurchaseID int64           `json:"purchase_id" db:"purchase_id"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Qty        decimal.Decimal `json:"qty" db:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	SubTotal   decimal.Decimal `json:"sub_total" db:"sub_total"`
}

// CreateInput describes a new draft purchase.
type CreateInput struct {
	CompanyID     int64
	SupplierID    int64
	InvoiceNumber string
	Lines         []LineInput
	CreatedBy     int64
}

// LineInput is one requested line.
type LineInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Qty       decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	CompanyID int64
	Status    *Status
	Limit     int
	Offset    int
}
