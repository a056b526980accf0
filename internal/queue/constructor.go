package queue

import (
	"time"

	"github.com/maheshrc27/postdispatch/internal/repository"
	"github.com/maheshrc27/postdispatch/internal/service"
	"go.uber.org/zap"
)

// Queue holds the collaborators the task handlers need.
type Queue struct {
	publisher service.PublishService
	rotation  service.IPRotationService
	workers   repository.WorkerRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewQueue(
	publisher service.PublishService,
	rotation service.IPRotationService,
	workers repository.WorkerRepository,
	logger *zap.Logger) *Queue {
	return &Queue{
		publisher: publisher,
		rotation:  rotation,
		workers:   workers,
		logger:    logger,
		now:       time.Now,
	}
}

const (
	TaskTypeTriggerPost    = "post:trigger"
	TaskTypeRotateBackoff  = "pool:rotate_backoff"
	TaskTypeCampaignAssign = "campaign:assign"
)

type TriggerPostPayload struct {
	PostID string `json:"post_id"`
}

type RotateBackoffPayload struct {
	PoolID      string `json:"pool_id"`
	MaxAttempts int    `json:"max_attempts"`
}

type CampaignAssignPayload struct {
	CampaignID string   `json:"campaign_id"`
	WorkerID   string   `json:"worker_id"`
	PostIDs    []string `json:"post_ids"`
}
