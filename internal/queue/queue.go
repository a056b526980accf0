package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskEnqueuer is the part of *asynq.Client the producer uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Producer puts tasks on the queue. It implements the orchestrator's
// worker notifier and the rotation job's backoff scheduler.
type Producer struct {
	client TaskEnqueuer
	logger *zap.Logger
}

func NewProducer(client TaskEnqueuer, logger *zap.Logger) *Producer {
	return &Producer{client: client, logger: logger}
}

func (p *Producer) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, asynq.NewTask(taskType, taskPayload), opts...)
	if err != nil {
		return err
	}

	p.logger.Debug("task enqueued", zap.String("type", taskType), zap.String("task_id", info.ID))
	return nil
}

func (p *Producer) EnqueueTriggerPost(ctx context.Context, postID string) error {
	return p.enqueue(ctx, TaskTypeTriggerPost, TriggerPostPayload{PostID: postID}, asynq.MaxRetry(0))
}

func (p *Producer) EnqueueRotateBackoff(ctx context.Context, poolID string, maxAttempts int) error {
	return p.enqueue(ctx, TaskTypeRotateBackoff, RotateBackoffPayload{PoolID: poolID, MaxAttempts: maxAttempts},
		asynq.MaxRetry(0), asynq.Unique(time.Minute))
}

func (p *Producer) NotifyAssignment(ctx context.Context, campaignID, workerID string, postIDs []string, delay time.Duration) error {
	return p.enqueue(ctx, TaskTypeCampaignAssign, CampaignAssignPayload{
		CampaignID: campaignID,
		WorkerID:   workerID,
		PostIDs:    postIDs,
	}, asynq.ProcessIn(delay))
}
