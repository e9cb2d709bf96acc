package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchase"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	stockService := stock.NewService(dbpool)
	ledgerCache := ledger.NewCache(redisClient, 5*time.Minute)
	ledgerService := ledger.NewService(dbpool, ledgerCache)
	treasuryService := treasury.NewService(treasury.NewPgRepository(dbpool))
	paymentsService := payments.NewService(payments.NewPgRepository(dbpool), cfg.BaseCurrency, logger)
	warehouseService := warehouse.NewService(dbpool)
	purchaseService := purchase.NewService(dbpool, cfg.BaseCurrency, logger, auditLogger)
	salesService := sales.NewService(
		sales.NewPgRepository(dbpool),
		ledgerService,
		treasuryService,
		paymentsService,
		warehouseService,
		jobClient,
		cfg.BaseCurrency,
		logger,
		auditLogger,
	)
	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Idempotency:      shared.NewIdempotencyStore(dbpool),
		SalesHandler:     sales.NewHandler(logger, salesService),
		PurchaseHandler:  purchase.NewHandler(logger, purchaseService),
		StockHandler:     stock.NewHandler(logger, stockService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		TreasuryHandler:  treasury.NewHandler(logger, treasuryService),
		PaymentsHandler:  payments.NewHandler(logger, paymentsService),
		WarehouseHandler: warehouse.NewHandler(logger, warehouseService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
