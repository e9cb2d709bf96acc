package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages receipt and installment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receipts", h.list)
	r.Get("/receipts/{id}", h.show)
	r.Get("/receipts/{id}/installments", h.installments)
	r.Post("/receipts/{id}/installments", h.addInstallment)
	r.Post("/receipts/{id}/pay", h.pay)
	r.Post("/receipts/{id}/cancel", h.cancel)
}

func receiptID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	filter := ListFilter{CompanyID: identity.CompanyID}
	if identity.IsSystemUser {
		if cid := r.URL.Query().Get("company_id"); cid != "" {
			if parsed, err := strconv.ParseInt(cid, 10, 64); err == nil {
				filter.CompanyID = parsed
			}
		}
	}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind := Kind(k)
		filter.Kind = &kind
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st := Status(s)
		filter.Status = &st
	}

	receipts, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receipt id must be numeric")
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) installments(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receipt id must be numeric")
		return
	}
	list, err := h.service.Installments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"installments": list})
}

func (h *Handler) addInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receipt id must be numeric")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	var req InstallmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	ins, err := h.service.AddInstallment(r.Context(), id, req, identity.UserID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ins)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receipt id must be numeric")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	var req PayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rec, err := h.service.Pay(r.Context(), id, req, identity.UserID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := receiptID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "receipt id must be numeric")
		return
	}
	rec, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}
