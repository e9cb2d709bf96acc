package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the machine-checkable classification of a business failure.
type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindPrecondition          Kind = "PRECONDITION"
	KindNotFound              Kind = "NOT_FOUND"
	KindAlreadyApproved       Kind = "ALREADY_APPROVED"
	KindInsufficientStock     Kind = "INSUFFICIENT_STOCK"
	KindProtectedRecord       Kind = "PROTECTED_RECORD"
	KindOverpayment           Kind = "OVERPAYMENT"
	KindAlreadySettled        Kind = "ALREADY_SETTLED"
	KindTreasuryMisconfigured Kind = "TREASURY_MISCONFIGURED"
)

// DomainError carries a kind alongside the detail message so callers can
// branch without string matching. Meta holds structured context for the
// boundary layer; it never contains stack traces.
type DomainError struct {
	Kind Kind
	Msg  string
	Meta map[string]any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewValidation reports malformed input caught before any mutation.
func NewValidation(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NewPrecondition reports a wrong-state failure, naming the offending condition.
func NewPrecondition(condition, format string, args ...any) error {
	return &DomainError{
		Kind: KindPrecondition,
		Msg:  fmt.Sprintf(format, args...),
		Meta: map[string]any{"condition": condition},
	}
}

// NewNotFound reports a missing resource. Identifiers are numeric except
// for outbox entries, which are keyed by UUID.
func NewNotFound(entity string, id any) error {
	return &DomainError{
		Kind: KindNotFound,
		Msg:  fmt.Sprintf("%s %v not found", entity, id),
		Meta: map[string]any{"entity": entity, "id": id},
	}
}

// NewAlreadyApproved reports a concurrent or repeated approval attempt.
func NewAlreadyApproved(saleID int64) error {
	return &DomainError{
		Kind: KindAlreadyApproved,
		Msg:  fmt.Sprintf("sale %d is no longer in DRAFT", saleID),
		Meta: map[string]any{"sale_id": saleID},
	}
}

// NewProtectedRecord rejects direct mutation of an auto-generated mirror
// record, pointing back at the originating sale.
func NewProtectedRecord(entity string, id, originSaleID int64) error {
	return &DomainError{
		Kind: KindProtectedRecord,
		Msg:  fmt.Sprintf("%s %d is system-generated for sale %d and cannot be edited directly", entity, id, originSaleID),
		Meta: map[string]any{"entity": entity, "id": id, "origin_sale_id": originSaleID},
	}
}

// NewOverpayment rejects an installment exceeding the receipt remainder.
func NewOverpayment(receiptID int64, amount, remaining decimal.Decimal) error {
	return &DomainError{
		Kind: KindOverpayment,
		Msg:  fmt.Sprintf("installment %s exceeds remaining %s on receipt %d", amount, remaining, receiptID),
		Meta: map[string]any{"receipt_id": receiptID, "amount": amount.String(), "remaining": remaining.String()},
	}
}

// NewAlreadySettled rejects payment against a PAID receipt.
func NewAlreadySettled(receiptID int64) error {
	return &DomainError{
		Kind: KindAlreadySettled,
		Msg:  fmt.Sprintf("receipt %d is already settled", receiptID),
		Meta: map[string]any{"receipt_id": receiptID},
	}
}

// NewTreasuryMisconfigured reports that no treasury matches a payment method.
func NewTreasuryMisconfigured(companyID int64, method string) error {
	return &DomainError{
		Kind: KindTreasuryMisconfigured,
		Msg:  fmt.Sprintf("no treasury configured for company %d and method %s", companyID, method),
		Meta: map[string]any{"company_id": companyID, "method": method},
	}
}

// InsufficientStockError carries the product and quantities the operator
// needs to resolve a failed allocation.
type InsufficientStockError struct {
	CompanyID int64
	ProductID int64
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: product %d at company %d has %s boxes, %s required",
		KindInsufficientStock, e.ProductID, e.CompanyID, e.Available, e.Required)
}

// KindOf extracts the machine-checkable kind from any error in the chain.
// Unclassified errors report an empty kind.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return KindInsufficientStock
	}
	return ""
}
