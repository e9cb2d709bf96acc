package shared

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NewValidation("bad input"), KindValidation},
		{NewPrecondition("wrong-status", "sale %d is cancelled", 1), KindPrecondition},
		{NewNotFound("sale", 1), KindNotFound},
		{NewAlreadyApproved(1), KindAlreadyApproved},
		{NewProtectedRecord("sale", 2, 1), KindProtectedRecord},
		{NewOverpayment(1, decimal.New(2, 0), decimal.New(1, 0)), KindOverpayment},
		{NewAlreadySettled(1), KindAlreadySettled},
		{NewTreasuryMisconfigured(1, "BANK"), KindTreasuryMisconfigured},
		{&InsufficientStockError{CompanyID: 1, ProductID: 2}, KindInsufficientStock},
		{fmt.Errorf("plain"), ""},
		{nil, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "error: %v", tc.err)
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("approve sale 9: %w", NewAlreadyApproved(9))
	assert.Equal(t, KindAlreadyApproved, KindOf(err))

	err = fmt.Errorf("apply plan: %w", &InsufficientStockError{
		CompanyID: 1, ProductID: 10,
		Available: decimal.New(3, 0), Required: decimal.New(10, 0),
	})
	assert.Equal(t, KindInsufficientStock, KindOf(err))
}

func TestPreconditionCarriesCondition(t *testing.T) {
	err := NewPrecondition("dispatch-pending", "dispatch for sale %d not started", 4)
	var de *DomainError
	assert.ErrorAs(t, err, &de)
	assert.Equal(t, "dispatch-pending", de.Meta["condition"])
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{
		CompanyID: 2, ProductID: 10,
		Available: decimal.RequireFromString("3"),
		Required:  decimal.RequireFromString("10"),
	}
	assert.Contains(t, err.Error(), "product 10")
	assert.Contains(t, err.Error(), "company 2")
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "10")
}
