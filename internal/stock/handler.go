package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages stock ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.listBalances)
	r.Get("/stock/{productID}", h.balance)
	r.Get("/stock/{productID}/movements", h.movements)
	r.Post("/stock/adjustments", h.adjust)
}

func (h *Handler) companyScope(r *http.Request) int64 {
	identity, _ := shared.IdentityFromContext(r.Context())
	companyID := identity.CompanyID
	if identity.IsSystemUser {
		if cid := r.URL.Query().Get("company_id"); cid != "" {
			if parsed, err := strconv.ParseInt(cid, 10, 64); err == nil {
				companyID = parsed
			}
		}
	}
	return companyID
}

func (h *Handler) listBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.ListBalances(r.Context(), h.companyScope(r))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	b, err := h.service.Balance(r.Context(), h.companyScope(r), productID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}

	filter := MovementFilter{CompanyID: h.companyScope(r), ProductID: productID}
	if rt := r.URL.Query().Get("ref_type"); rt != "" {
		ref := RefType(rt)
		filter.RefType = &ref
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID int64           `json:"product_id"`
		Qty       decimal.Decimal `json:"qty"`
		Direction Direction       `json:"direction"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	m, err := h.service.Post(r.Context(), MovementInput{
		CompanyID: h.companyScope(r),
		ProductID: body.ProductID,
		Qty:       body.Qty,
		Direction: body.Direction,
		RefType:   RefAdjust,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}
