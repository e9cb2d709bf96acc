package warehouse

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler manages dispatch order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dispatches", h.list)
	r.Get("/dispatches/{id}", h.show)
	r.Post("/dispatches/{id}/start", h.start)
	r.Post("/dispatches/{id}/complete", h.complete)
}

func dispatchID(r *http.Request) (int64, error) {
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
		st := DispatchStatus(s)
		filter.Status = &st
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dispatch_orders": orders})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := dispatchID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "dispatch id must be numeric")
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, err := dispatchID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "dispatch id must be numeric")
		return
	}
	d, err := h.service.Start(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := dispatchID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "dispatch id must be numeric")
		return
	}
	d, err := h.service.Complete(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
