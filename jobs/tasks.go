package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeMirrorSettle settles one inter-company outbox entry.
	TaskTypeMirrorSettle = "intercompany:settle"
	// TaskTypeMirrorSweep re-enqueues outbox entries that lost their
	// original enqueue (process crash between commit and enqueue).
	TaskTypeMirrorSweep = "intercompany:sweep"
)

// MirrorSettlePayload identifies the outbox entry to settle.
type MirrorSettlePayload struct {
	OutboxID uuid.UUID `json:"outbox_id"`
}

// NewMirrorSettleTask constructs a settlement task.
func NewMirrorSettleTask(payload MirrorSettlePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMirrorSettle, data), nil
}

// NewMirrorSweepTask constructs the periodic sweep task.
func NewMirrorSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeMirrorSweep, nil)
}
