package purchase

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages purchase endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/purchases", h.list)
	r.Post("/purchases", h.create)
	r.Get("/purchases/{id}", h.show)
	r.Post("/purchases/{id}/approve", h.approve)
	r.Post("/purchases/{id}/cancel", h.cancel)
}

func purchaseID(r *http.Request) (int64, error) {
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
	if s := r.URL.Query().Get("status"); s != "" {
		st := Status(s)
		filter.Status = &st
	}

	purchases, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := purchaseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase id must be numeric")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var body struct {
		CompanyID     int64       `json:"company_id"`
		SupplierID    int64       `json:"supplier_id"`
		InvoiceNumber string      `json:"invoice_number"`
		Lines         []LineInput `json:"lines"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	companyID := body.CompanyID
	if !identity.IsSystemUser || companyID == 0 {
		companyID = identity.CompanyID
	}

	p, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:     companyID,
		SupplierID:    body.SupplierID,
		InvoiceNumber: body.InvoiceNumber,
		Lines:         body.Lines,
		CreatedBy:     identity.UserID,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := purchaseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase id must be numeric")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	p, err := h.service.Approve(r.Context(), id, identity.UserID)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := purchaseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase id must be numeric")
		return
	}
	p, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
