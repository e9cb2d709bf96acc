package warehouse

import "time"

// DispatchStatus tracks physical fulfilment of an approved sale.
type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "PENDING"
	DispatchInProgress DispatchStatus = "IN_PROGRESS"
	DispatchCompleted  DispatchStatus = "COMPLETED"
)

// DispatchOrder is the warehouse-side record of goods to hand over for an
// approved sale. Returns are only accepted once the dispatch completed,
// since until then nothing physically left the warehouse.
type DispatchOrder struct {
	ID        int64          `json:"id" db:"id"`
	SaleID    int64          `json:"sale_id" db:"sale_id"`
	CompanyID int64          `json:"company_id" db:"company_id"`
	Status    DispatchStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter narrows dispatch listings.
type ListFilter struct {
	CompanyID int64
	Status    *DispatchStatus
	Limit     int
	Offset    int
}
