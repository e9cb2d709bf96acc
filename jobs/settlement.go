package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/intercompany"
)

// Settler wires the settlement service into asynq handlers.
type Settler struct {
	service *intercompany.Service
	client  *Client
	logger  *slog.Logger
}

// NewSettler constructs a Settler.
func NewSettler(service *intercompany.Service, client *Client, logger *slog.Logger) *Settler {
	return &Settler{service: service, client: client, logger: logger}
}

// HandleMirrorSettle settles one outbox entry. The settlement is
// idempotent, so asynq-level retries after transient failures are safe.
func (s *Settler) HandleMirrorSettle(ctx context.Context, t *asynq.Task) error {
	var payload MirrorSettlePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	result, err := s.service.Settle(ctx, payload.OutboxID)
	if err != nil {
		s.logger.Warn("mirror settlement attempt failed",
			slog.String("outbox_id", payload.OutboxID.String()), slog.Any("error", err))
		return err
	}
	if result.ParentSaleID != 0 {
		s.logger.Info("mirror settlement completed",
			slog.String("outbox_id", result.OutboxID.String()),
			slog.Int64("origin_sale_id", result.OriginSaleID),
			slog.Int64("parent_sale_id", result.ParentSaleID),
			slog.Int64("branch_purchase_id", result.BranchPurchaseID))
	}
	return nil
}

// HandleMirrorSweep re-enqueues every pending outbox entry. Normally the
// approval enqueues settlements directly; the sweep catches entries whose
// enqueue was lost.
func (s *Settler) HandleMirrorSweep(ctx context.Context, t *asynq.Task) error {
	pending, err := s.service.Pending(ctx, 100)
	if err != nil {
		return err
	}
	for _, entry := range pending {
		if err := s.client.EnqueueMirrorSettlement(ctx, entry.ID); err != nil {
			s.logger.Warn("sweep enqueue",
				slog.String("outbox_id", entry.ID.String()), slog.Any("error", err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("mirror sweep enqueued pending settlements", slog.Int("count", len(pending)))
	}
	return nil
}
