package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func respond(t *testing.T, err error, acceptLanguage string) (*httptest.ResponseRecorder, ProblemDetail) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	w := httptest.NewRecorder()
	RespondError(w, req, err)

	var pd ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pd))
	return w, pd
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", shared.NewValidation("bad"), http.StatusBadRequest},
		{"not found", shared.NewNotFound("sale", 1), http.StatusNotFound},
		{"precondition", shared.NewPrecondition("wrong-status", "nope"), http.StatusConflict},
		{"already approved", shared.NewAlreadyApproved(1), http.StatusConflict},
		{"already settled", shared.NewAlreadySettled(1), http.StatusConflict},
		{"insufficient stock", &shared.InsufficientStockError{}, http.StatusUnprocessableEntity},
		{"overpayment", shared.NewOverpayment(1, decimal.New(2, 0), decimal.New(1, 0)), http.StatusUnprocessableEntity},
		{"treasury misconfigured", shared.NewTreasuryMisconfigured(1, "BANK"), http.StatusUnprocessableEntity},
		{"protected record", shared.NewProtectedRecord("sale", 2, 1), http.StatusForbidden},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := respond(t, tc.err, "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRespondErrorHidesUnclassifiedDetail(t *testing.T) {
	_, pd := respond(t, errors.New("pq: connection refused"), "")
	assert.Empty(t, pd.Detail)
	assert.Empty(t, pd.Kind)
}

func TestRespondErrorCarriesKindAndMeta(t *testing.T) {
	_, pd := respond(t, shared.NewAlreadyApproved(42), "")
	assert.Equal(t, "ALREADY_APPROVED", pd.Kind)

	meta, ok := pd.Meta.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 42, meta["sale_id"])
}

func TestRespondErrorInsufficientStockMeta(t *testing.T) {
	_, pd := respond(t, &shared.InsufficientStockError{
		CompanyID: 1, ProductID: 10,
		Available: decimal.RequireFromString("3"),
		Required:  decimal.RequireFromString("10"),
	}, "")
	meta, ok := pd.Meta.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3", meta["available"])
	assert.Equal(t, "10", meta["required"])
}

func TestRespondErrorLocalizesTitle(t *testing.T) {
	_, en := respond(t, shared.NewAlreadyApproved(1), "en-US")
	assert.Equal(t, "Sale has already been approved", en.Title)

	_, ar := respond(t, shared.NewAlreadyApproved(1), "ar-EG")
	assert.Equal(t, "تمت الموافقة على الفاتورة مسبقاً", ar.Title)
}
