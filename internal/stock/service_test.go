package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestApplyRejectsIncompleteInput(t *testing.T) {
	// Validation runs before any row is touched.
	_, err := Apply(context.Background(), nil, MovementInput{
		ProductID: 10, Qty: decimal.RequireFromString("1"), Direction: DirectionIn,
	})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = Apply(context.Background(), nil, MovementInput{
		CompanyID: 2, Qty: decimal.RequireFromString("1"), Direction: DirectionIn,
	})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestApplyRejectsNonPositiveQty(t *testing.T) {
	_, err := Apply(context.Background(), nil, MovementInput{
		CompanyID: 2, ProductID: 10, Qty: decimal.Zero, Direction: DirectionOut,
	})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = Apply(context.Background(), nil, MovementInput{
		CompanyID: 2, ProductID: 10, Qty: decimal.RequireFromString("-3"), Direction: DirectionIn,
	})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}
