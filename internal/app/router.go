package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/purchase"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Idempotency      *shared.IdempotencyStore
	SalesHandler     *sales.Handler
	PurchaseHandler  *purchase.Handler
	StockHandler     *stock.Handler
	LedgerHandler    *ledger.Handler
	TreasuryHandler  *treasury.Handler
	PaymentsHandler  *payments.Handler
	WarehouseHandler *warehouse.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdempotencyMiddleware(params.Idempotency, params.Logger))
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.PurchaseHandler != nil {
			params.PurchaseHandler.MountRoutes(r)
		}
		if params.StockHandler != nil {
			params.StockHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.TreasuryHandler != nil {
			params.TreasuryHandler.MountRoutes(r)
		}
		if params.PaymentsHandler != nil {
			params.PaymentsHandler.MountRoutes(r)
		}
		if params.WarehouseHandler != nil {
			params.WarehouseHandler.MountRoutes(r)
		}
	})

	return r
}
