package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages sale endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.list)
	r.Post("/sales", h.create)
	r.Get("/sales/{id}", h.show)
	r.Put("/sales/{id}/lines", h.replaceLines)
	r.Post("/sales/{id}/approve", h.approve)
	r.Post("/sales/{id}/cancel", h.cancel)
	r.Post("/sales/{id}/returns", h.createReturn)
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func limitOffset(r *http.Request) (int, int) {
	limit, offset := 50, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	filter := ListFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		st := Status(s)
		filter.Status = &st
	}
	if cid := r.URL.Query().Get("company_id"); cid != "" {
		if parsed, err := strconv.ParseInt(cid, 10, 64); err == nil {
			filter.CompanyID = parsed
		}
	}
	filter.Limit, filter.Offset = limitOffset(r)

	result, err := h.service.List(r.Context(), filter, identity)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": result})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var body struct {
		CompanyID     int64       `json:"company_id"`
		CustomerID    *int64      `json:"customer_id"`
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

	sale, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:     companyID,
		CustomerID:    body.CustomerID,
		InvoiceNumber: body.InvoiceNumber,
		Lines:         body.Lines,
		CreatedBy:     identity.UserID,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	var body struct {
		Lines []LineInput `json:"lines"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	sale, err := h.service.ReplaceLines(r.Context(), id, body.Lines)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	var req ApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	sale, err := h.service.Approve(r.Context(), id, req, identity)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())

	var body struct {
		Lines []ReturnLine `json:"lines"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	ret, err := h.service.Return(r.Context(), ReturnInput{
		SaleID:    id,
		Lines:     body.Lines,
		CreatedBy: identity.UserID,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}
