package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postdispatch/internal/metrics"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	RotationTimeThreshold     = 2 * time.Hour
	DefaultRotationAttempts   = 3
	defaultRotationHistoryMax = 50
)

var rotationBackoff = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

type RotationRequest struct {
	PoolID  string
	Trigger string
	Reason  string
	Force   bool
}

type IPRotationService interface {
	RotateIP(ctx context.Context, req RotationRequest) *models.RotationResult
	CheckIfRotationNeeded(ctx context.Context, pool *models.IpPool, trigger string) (bool, error)
	AutoRotatePools(ctx context.Context) ([]*models.RotationResult, error)
	RotateWithBackoff(ctx context.Context, poolID string, maxAttempts int) *models.RotationResult
	RotationHistory(ctx context.Context, poolID string, limit int) ([]*models.IpRotationLog, error)
}

type ipRotationService struct {
	pools      repository.IpPoolRepository
	sessions   repository.IpSessionRepository
	logs       repository.RotationLogRepository
	strategies RotationStrategies
	metrics    *metrics.Collector
	logger     *zap.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewIPRotationService(
	pools repository.IpPoolRepository,
	sessions repository.IpSessionRepository,
	logs repository.RotationLogRepository,
	strategies RotationStrategies,
	m *metrics.Collector,
	logger *zap.Logger) IPRotationService {
	return &ipRotationService{
		pools:      pools,
		sessions:   sessions,
		logs:       logs,
		strategies: strategies,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func defaultRotationReason(trigger string) string {
	switch trigger {
	case models.TriggerManual:
		return "Manual rotation triggered by admin"
	case models.TriggerBatchThreshold:
		return "Batch posting threshold reached"
	case models.TriggerTimeInterval:
		return "Time interval threshold reached"
	case models.TriggerErrorRecovery:
		return "Recovering from posting errors"
	case models.TriggerHealthDegradation:
		return "IP pool health degraded"
	}
	return "Unknown reason"
}

func (s *ipRotationService) CheckIfRotationNeeded(ctx context.Context, pool *models.IpPool, trigger string) (bool, error) {
	switch trigger {
	case models.TriggerBatchThreshold:
		active, err := s.sessions.GetActive(ctx, pool.ID)
		if err != nil {
			return false, err
		}
		return active != nil && active.Attempts() >= SessionBatchThreshold, nil
	case models.TriggerTimeInterval:
		return pool.LastRotatedAt == nil || s.now().Sub(*pool.LastRotatedAt) >= RotationTimeThreshold, nil
	case models.TriggerErrorRecovery, models.TriggerHealthDegradation, models.TriggerManual:
		return true, nil
	}
	return false, nil
}

// RotateIP never returns an error: every outcome, including failures, is
// described by the result and failed attempts are written to the audit log.
func (s *ipRotationService) RotateIP(ctx context.Context, req RotationRequest) *models.RotationResult {
	res := &models.RotationResult{PoolID: req.PoolID, Trigger: req.Trigger, RotatedAt: s.now()}

	pool, err := s.pools.GetByID(ctx, req.PoolID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if pool == nil {
		res.Error = "IP Pool not found"
		return res
	}

	res.OldIP = pool.CurrentIP
	res.Reason = req.Reason
	if res.Reason == "" {
		res.Reason = defaultRotationReason(req.Trigger)
	}

	if !req.Force {
		needed, err := s.CheckIfRotationNeeded(ctx, pool, req.Trigger)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if !needed {
			s.logger.Debug("rotation not needed", zap.String("pool_id", pool.ID), zap.String("trigger", req.Trigger))
			res.Success = true
			res.NewIP = pool.CurrentIP
			return res
		}
	}

	newIP, err := s.execute(ctx, pool)
	if err == nil {
		err = s.applyRotation(ctx, pool, newIP)
	}

	entry := &models.IpRotationLog{
		IPPoolID:  pool.ID,
		OldIP:     pool.CurrentIP,
		Trigger:   req.Trigger,
		Reason:    res.Reason,
		RotatedAt: s.now(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
		res.Error = err.Error()
		s.logger.Warn("ip rotation failed",
			zap.String("pool_id", pool.ID), zap.String("trigger", req.Trigger), zap.Error(err))
	} else {
		entry.Success = true
		entry.NewIP = newIP
		res.Success = true
		res.Rotated = true
		res.NewIP = newIP
		res.RotatedAt = entry.RotatedAt
		s.logger.Info("ip rotated",
			zap.String("pool_id", pool.ID), zap.String("pool", pool.Name),
			zap.String("old_ip", pool.CurrentIP), zap.String("new_ip", newIP),
			zap.String("trigger", req.Trigger))
	}

	if _, logErr := s.logs.Create(ctx, entry); logErr != nil {
		s.logger.Error("failed to write rotation log", zap.String("pool_id", pool.ID), zap.Error(logErr))
	}
	s.metrics.Rotation(pool.Type, req.Trigger, entry.Success)
	return res
}

func (s *ipRotationService) execute(ctx context.Context, pool *models.IpPool) (string, error) {
	strategy, err := s.strategies.strategyFor(pool.Type)
	if err != nil {
		return "", err
	}
	return strategy.Rotate(ctx, pool)
}

// applyRotation records the new address and ends the session that belonged
// to the old one.
func (s *ipRotationService) applyRotation(ctx context.Context, pool *models.IpPool, newIP string) error {
	at := s.now()
	if err := s.pools.UpdateRotation(ctx, pool.ID, newIP, at); err != nil {
		return fmt.Errorf("update pool after rotation: %w", err)
	}
	if err := s.sessions.CloseActive(ctx, pool.ID, at); err != nil {
		s.logger.Warn("failed to close session after rotation", zap.String("pool_id", pool.ID), zap.Error(err))
	}
	return nil
}

// AutoRotatePools issues at most one rotation per pool, checking batch
// threshold, then time interval, then health.
func (s *ipRotationService) AutoRotatePools(ctx context.Context) ([]*models.RotationResult, error) {
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active pools: %w", err)
	}

	var results []*models.RotationResult
	for _, pool := range pools {
		req := RotationRequest{PoolID: pool.ID}

		batch, err := s.CheckIfRotationNeeded(ctx, pool, models.TriggerBatchThreshold)
		if err != nil {
			s.logger.Warn("batch threshold check failed", zap.String("pool_id", pool.ID), zap.Error(err))
		}
		switch {
		case batch:
			req.Trigger = models.TriggerBatchThreshold
			req.Reason = fmt.Sprintf("Reached batch threshold of %d posts", SessionBatchThreshold)
		case pool.LastRotatedAt == nil || s.now().Sub(*pool.LastRotatedAt) >= RotationTimeThreshold:
			req.Trigger = models.TriggerTimeInterval
			req.Reason = fmt.Sprintf("Exceeded %d hours since last rotation", int(RotationTimeThreshold.Hours()))
		case pool.HealthScore != nil && *pool.HealthScore < MinimumHealthThreshold:
			req.Trigger = models.TriggerHealthDegradation
			req.Reason = fmt.Sprintf("Health score dropped to %d", *pool.HealthScore)
		default:
			continue
		}

		results = append(results, s.RotateIP(ctx, req))
	}
	return results, nil
}

// RotateWithBackoff retries an error-recovery rotation, waiting 5s, 10s and
// 20s between attempts.
func (s *ipRotationService) RotateWithBackoff(ctx context.Context, poolID string, maxAttempts int) *models.RotationResult {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRotationAttempts
	}

	var last *models.RotationResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		last = s.RotateIP(ctx, RotationRequest{
			PoolID:  poolID,
			Trigger: models.TriggerErrorRecovery,
			Reason:  fmt.Sprintf("Rotation attempt %d/%d", attempt+1, maxAttempts),
		})
		if last.Success {
			return last
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := rotationBackoff[len(rotationBackoff)-1]
		if attempt < len(rotationBackoff) {
			delay = rotationBackoff[attempt]
		}
		s.logger.Info("rotation failed, backing off",
			zap.String("pool_id", poolID), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		if err := s.sleep(ctx, delay); err != nil {
			last.Error = err.Error()
			return last
		}
	}

	if last.Error == "" {
		last.Error = "All rotation attempts failed"
	}
	return last
}

func (s *ipRotationService) RotationHistory(ctx context.Context, poolID string, limit int) ([]*models.IpRotationLog, error) {
	if limit <= 0 {
		limit = defaultRotationHistoryMax
	}
	return s.logs.ListByPool(ctx, poolID, limit)
}
