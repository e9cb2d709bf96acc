package sales

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LineAllocation fixes the stock source of one line before anything is
// written. Corrected reports that the fallback flipped the line to parent
// sourcing, which must be persisted with the approval.
type LineAllocation struct {
	LineID          int64
	ProductID       int64
	Qty             decimal.Decimal
	SourceCompanyID int64
	FromParent      bool
	Corrected       bool
}

// AllocationPlan is the complete source assignment for a sale. The plan is
// accepted or rejected as a whole; only an accepted plan is applied, so no
// line is decremented while a later line can still fail.
type AllocationPlan struct {
	Lines []LineAllocation
}

// UsesParentStock reports whether any line draws from the parent company.
func (p AllocationPlan) UsesParentStock() bool {
	for _, l := range p.Lines {
		if l.FromParent {
			return true
		}
	}
	return false
}

// OwnerFunc resolves the company that legally owns a product.
type OwnerFunc func(ctx context.Context, productID int64) (int64, error)

// AvailableFunc reads the box balance of a (company, product) pair;
// missing balances read as zero.
type AvailableFunc func(ctx context.Context, companyID, productID int64) (decimal.Decimal, error)

// BuildAllocationPlan assigns a stock source to every line. Local stock is
// always preferred; a line short at the branch falls back to the parent
// only when the product's registered owner is the parent, and never the
// other way around. Reservations accumulate across lines, so two lines of
// the same product cannot both claim the same boxes. A line that stays
// short after the fallback fails the whole plan with
// InsufficientStockError.
func BuildAllocationPlan(
	ctx context.Context,
	lines []Line,
	branchID int64,
	parentID *int64,
	owner OwnerFunc,
	available AvailableFunc,
) (AllocationPlan, error) {
	type pair struct{ company, product int64 }
	reserved := map[pair]decimal.Decimal{}

	remaining := func(companyID, productID int64) (decimal.Decimal, error) {
		avail, err := available(ctx, companyID, productID)
		if err != nil {
			return decimal.Zero, err
		}
		return avail.Sub(reserved[pair{companyID, productID}]), nil
	}

	plan := AllocationPlan{Lines: make([]LineAllocation, 0, len(lines))}
	for _, line := range lines {
		if !line.Qty.IsPositive() {
			return AllocationPlan{}, shared.NewValidation("sales: line %d qty must be positive", line.ID)
		}

		source := branchID
		fromParent := line.IsFromParentCompany
		if fromParent {
			if parentID == nil {
				return AllocationPlan{}, shared.NewValidation("sales: line %d declares parent sourcing but company %d has no parent", line.ID, branchID)
			}
			source = *parentID
		}

		avail, err := remaining(source, line.ProductID)
		if err != nil {
			return AllocationPlan{}, err
		}

		corrected := false
		if avail.LessThan(line.Qty) && !fromParent && parentID != nil {
			ownerID, err := owner(ctx, line.ProductID)
			if err != nil {
				return AllocationPlan{}, err
			}
			if ownerID == *parentID {
				parentAvail, err := remaining(*parentID, line.ProductID)
				if err != nil {
					return AllocationPlan{}, err
				}
				if parentAvail.GreaterThanOrEqual(line.Qty) {
					source = *parentID
					fromParent = true
					corrected = true
					avail = parentAvail
				}
			}
		}

		if avail.LessThan(line.Qty) {
			return AllocationPlan{}, &shared.InsufficientStockError{
				CompanyID: source,
				ProductID: line.ProductID,
				Available: avail,
				Required:  line.Qty,
			}
		}

		key := pair{source, line.ProductID}
		reserved[key] = reserved[key].Add(line.Qty)
		plan.Lines = append(plan.Lines, LineAllocation{
			LineID:          line.ID,
			ProductID:       line.ProductID,
			Qty:             line.Qty,
			SourceCompanyID: source,
			FromParent:      fromParent,
			Corrected:       corrected,
		})
	}
	return plan, nil
}
