package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMirrorSettleTask(t *testing.T) {
	id := uuid.New()
	task, err := NewMirrorSettleTask(MirrorSettlePayload{OutboxID: id})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeMirrorSettle, task.Type())

	var payload MirrorSettlePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, id, payload.OutboxID)
}

func TestNewMirrorSweepTask(t *testing.T) {
	task := NewMirrorSweepTask()
	assert.Equal(t, TaskTypeMirrorSweep, task.Type())
	assert.Empty(t, task.Payload())
}

func TestHandleMirrorSettleRejectsMalformedPayload(t *testing.T) {
	s := NewSettler(nil, nil, slog.Default())
	task := asynq.NewTask(TaskTypeMirrorSettle, []byte("not json"))
	err := s.HandleMirrorSettle(context.Background(), task)
	// Malformed payloads can never succeed; retrying would only repeat the
	// failure, so the task is dropped.
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
