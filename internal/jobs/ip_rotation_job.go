package job

import (
	"context"
	"sync"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/service"
	"go.uber.org/zap"
)

const (
	backoffAttempts  = 3
	concurrencyLimit = 10
)

// BackoffScheduler queues a rotate-with-backoff attempt for a pool.
type BackoffScheduler interface {
	EnqueueRotateBackoff(ctx context.Context, poolID string, maxAttempts int) error
}

// IPRotationJob runs the threshold, interval and health checks over every
// active pool. Pools whose rotation failed are handed to the queue for a
// retry with backoff.
type IPRotationJob struct {
	rotation service.IPRotationService
	backoff  BackoffScheduler
	logger   *zap.Logger
}

func NewIPRotationJob(rotation service.IPRotationService, backoff BackoffScheduler, logger *zap.Logger) *IPRotationJob {
	return &IPRotationJob{
		rotation: rotation,
		backoff:  backoff,
		logger:   logger,
	}
}

func (j *IPRotationJob) RotatePools() {
	j.Run(context.Background())
}

func (j *IPRotationJob) Run(ctx context.Context) []*models.RotationResult {
	results, err := j.rotation.AutoRotatePools(ctx)
	if err != nil {
		j.logger.Error("auto rotation failed", zap.Error(err))
		return nil
	}

	var failed []*models.RotationResult
	for _, r := range results {
		if r.Success {
			if r.Rotated {
				j.logger.Info("pool rotated",
					zap.String("pool_id", r.PoolID), zap.String("old_ip", r.OldIP), zap.String("new_ip", r.NewIP))
			}
			continue
		}
		failed = append(failed, r)
	}
	if len(failed) == 0 || j.backoff == nil {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrencyLimit)
	for _, r := range failed {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(r *models.RotationResult) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.backoff.EnqueueRotateBackoff(ctx, r.PoolID, backoffAttempts); err != nil {
				j.logger.Warn("unable to queue backoff rotation", zap.String("pool_id", r.PoolID), zap.Error(err))
				return
			}
			j.logger.Info("backoff rotation queued", zap.String("pool_id", r.PoolID), zap.String("error", r.Error))
		}(r)
	}
	wg.Wait()
	return results
}
