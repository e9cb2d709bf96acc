package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// statusFor maps failure kinds to HTTP status codes.
func statusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindPrecondition, shared.KindAlreadyApproved, shared.KindAlreadySettled:
		return http.StatusConflict
	case shared.KindInsufficientStock, shared.KindOverpayment, shared.KindTreasuryMisconfigured:
		return http.StatusUnprocessableEntity
	case shared.KindProtectedRecord:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps a domain error to an RFC7807 response. The title is
// resolved in the operator's language from Accept-Language; the detail and
// kind stay machine-oriented. Unclassified errors surface as opaque 500s.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := shared.KindOf(err)
	if kind == "" {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	detail := err.Error()
	var meta any
	var de *shared.DomainError
	if errors.As(err, &de) {
		meta = de.Meta
	}
	var ise *shared.InsufficientStockError
	if errors.As(err, &ise) {
		meta = map[string]any{
			"company_id": ise.CompanyID,
			"product_id": ise.ProductID,
			"available":  ise.Available.String(),
			"required":   ise.Required.String(),
		}
	}

	JSON(w, statusFor(kind), ProblemDetail{
		Title:  shared.TitleFor(kind, r.Header.Get("Accept-Language")),
		Status: statusFor(kind),
		Detail: detail,
		Kind:   string(kind),
		Meta:   meta,
	})
}
