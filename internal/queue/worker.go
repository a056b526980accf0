package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postdispatch/internal/service"
	"go.uber.org/zap"
)

// Register wires every task handler into mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeTriggerPost, q.HandleTriggerPostTask)
	mux.HandleFunc(TaskTypeRotateBackoff, q.HandleRotateBackoffTask)
	mux.HandleFunc(TaskTypeCampaignAssign, q.HandleCampaignAssignTask)
}

func (q *Queue) HandleTriggerPostTask(ctx context.Context, task *asynq.Task) error {
	var payload TriggerPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	outcome, err := q.publisher.TriggerPost(ctx, payload.PostID)
	if errors.Is(err, service.ErrPostNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	q.logger.Info("post triggered", zap.String("post_id", payload.PostID), zap.String("outcome", outcome))
	return nil
}

// HandleRotateBackoffTask retries inside the task; a final failure is not
// retried by the queue.
func (q *Queue) HandleRotateBackoffTask(ctx context.Context, task *asynq.Task) error {
	var payload RotateBackoffPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	res := q.rotation.RotateWithBackoff(ctx, payload.PoolID, payload.MaxAttempts)
	if !res.Success {
		return fmt.Errorf("rotate pool %s: %s: %w", payload.PoolID, res.Error, asynq.SkipRetry)
	}

	q.logger.Info("pool rotated with backoff",
		zap.String("pool_id", payload.PoolID), zap.String("new_ip", res.NewIP))
	return nil
}

// HandleCampaignAssignTask records the hand-off to a worker. Dispatch to
// the worker itself happens outside this service.
func (q *Queue) HandleCampaignAssignTask(ctx context.Context, task *asynq.Task) error {
	var payload CampaignAssignPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := q.workers.TouchLastJob(ctx, payload.WorkerID, q.now()); err != nil {
		return fmt.Errorf("touch worker %s: %w", payload.WorkerID, err)
	}

	q.logger.Info("campaign posts assigned",
		zap.String("campaign_id", payload.CampaignID),
		zap.String("worker_id", payload.WorkerID),
		zap.Int("posts", len(payload.PostIDs)))
	return nil
}
