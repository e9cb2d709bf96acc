package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes read-only ledger projections plus explicit reversals.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/{side}/{counterpartyID}/statement", h.statement)
	r.Get("/ledger/{side}/{counterpartyID}/balance", h.balance)
	r.Post("/ledger/entries/{id}/reverse", h.reverse)
}

func (h *Handler) scope(r *http.Request) (int64, Side, int64, error) {
	identity, _ := shared.IdentityFromContext(r.Context())
	companyID := identity.CompanyID
	if identity.IsSystemUser {
		if cid := r.URL.Query().Get("company_id"); cid != "" {
			if parsed, err := strconv.ParseInt(cid, 10, 64); err == nil {
				companyID = parsed
			}
		}
	}
	counterpartyID, err := strconv.ParseInt(chi.URLParam(r, "counterpartyID"), 10, 64)
	if err != nil {
		return 0, "", 0, err
	}
	return companyID, Side(chi.URLParam(r, "side")), counterpartyID, nil
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	companyID, side, counterpartyID, err := h.scope(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "counterparty id must be numeric")
		return
	}
	if side != SideCustomer && side != SideSupplier {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Side", "side must be CUSTOMER or SUPPLIER")
		return
	}

	filter := StatementFilter{CompanyID: companyID, Side: side, CounterpartyID: counterpartyID}
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

	entries, err := h.service.Statement(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	companyID, side, counterpartyID, err := h.scope(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "counterparty id must be numeric")
		return
	}
	balance, err := h.service.Balance(r.Context(), companyID, side, counterpartyID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be numeric")
		return
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entry, err := h.service.ReverseByID(r.Context(), id, body.Description)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}
