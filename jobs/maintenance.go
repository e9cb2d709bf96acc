package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TaskTypeIdempotencyCleanup purges idempotency keys past their retention.
const TaskTypeIdempotencyCleanup = "maintenance:idempotency-cleanup"

// idempotencyRetention is how long a processed key still blocks replays.
const idempotencyRetention = 48 * time.Hour

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// Janitor runs periodic maintenance jobs.
type Janitor struct {
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
}

// NewJanitor constructs a Janitor.
func NewJanitor(idempotency *shared.IdempotencyStore, logger *slog.Logger) *Janitor {
	return &Janitor{idempotency: idempotency, logger: logger}
}

// HandleIdempotencyCleanup drops keys older than the retention window.
func (j *Janitor) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	if err := j.idempotency.Cleanup(ctx, idempotencyRetention); err != nil {
		return err
	}
	j.logger.Info("idempotency keys cleaned", slog.Duration("retention", idempotencyRetention))
	return nil
}
