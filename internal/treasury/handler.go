package treasury

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler manages treasury endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers treasury routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/treasuries/{id}", h.show)
	r.Get("/treasuries/{id}/transactions", h.transactions)
	r.Post("/treasuries/{id}/post", h.post)
	r.Post("/treasuries/transfer", h.transfer)
}

func treasuryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := treasuryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "treasury id must be numeric")
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	id, err := treasuryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "treasury id must be numeric")
		return
	}

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

	txns, err := h.service.Transactions(r.Context(), id, limit, offset)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	id, err := treasuryID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "treasury id must be numeric")
		return
	}

	var body struct {
		Amount      decimal.Decimal `json:"amount"`
		Direction   Direction       `json:"direction"`
		Description string          `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	txn, err := h.service.Post(r.Context(), PostInput{
		TreasuryID:  id,
		Amount:      body.Amount,
		Direction:   body.Direction,
		Source:      SourceManual,
		RefType:     RefManual,
		RefID:       0,
		Description: body.Description,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FromID      int64           `json:"from_id"`
		ToID        int64           `json:"to_id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	out, in, err := h.service.Transfer(r.Context(), body.FromID, body.ToID, body.Amount, body.Description)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"withdrawal": out, "deposit": in})
}
