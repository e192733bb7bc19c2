package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mohamdabidi2/geox-sub001/internal/droits"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRightsInvalidate marks a user's derived rights stale after a
	// grant mutation. The handler advances the user's rights epoch so every
	// gateway replica rebuilds its cached resolver on next use.
	TaskTypeRightsInvalidate = "droits:invalidate"
)

// RightsInvalidatePayload identifies the user whose grants changed.
type RightsInvalidatePayload struct {
	UserID int64 `json:"user_id"`
}

// NewRightsInvalidateTask constructs an Asynq task.
func NewRightsInvalidateTask(payload RightsInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRightsInvalidate, data), nil
}

// RightsInvalidator processes TaskTypeRightsInvalidate tasks.
type RightsInvalidator struct {
	Redis  *redis.Client
	Logger *slog.Logger
}

// Handle advances the rights epoch counter for the payload's user.
func (h RightsInvalidator) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RightsInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID == 0 {
		return asynq.SkipRetry
	}
	if err := h.Redis.Incr(ctx, droits.RightsEpochKey(payload.UserID)).Err(); err != nil {
		return err
	}
	if h.Logger != nil {
		h.Logger.Info("rights epoch advanced", slog.Int64("user_id", payload.UserID))
	}
	return nil
}

// Enqueuer submits background tasks from the gateway process. It satisfies
// droits.Invalidator.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// InvalidateRights enqueues a rights invalidation for userID.
func (e *Enqueuer) InvalidateRights(ctx context.Context, userID int64) error {
	task, err := NewRightsInvalidateTask(RightsInvalidatePayload{UserID: userID})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
