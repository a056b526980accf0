package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	MinimumHealthThreshold = 30
	SessionBatchThreshold  = 15

	weightHealth      = 40
	weightLoad        = 30
	weightCost        = 15
	weightPerformance = 15

	defaultSubScore         = 50
	estimatedPostsPerMonth  = 1000
	maxAlternatives         = 3
	defaultPoolsByLoadLimit = 5
)

const (
	ReasonNoActivePools   = "No active IP pools available"
	ReasonAllExcluded     = "All pools are excluded or unavailable"
	ReasonAllUnhealthy    = "All pools are unhealthy (health score < 30)"
	reasonSelectedByScore = "Selected highest scoring pool"
)

type AssignmentOptions struct {
	Platform       string
	Priority       int
	ExcludePoolIDs []string
	BatchID        string
}

type IPAssignmentService interface {
	AssignIPPool(ctx context.Context, postID string, opts AssignmentOptions) (*models.AssignmentResult, error)
	AssignBatchIPPools(ctx context.Context, postIDs []string, opts AssignmentOptions) (map[string]*models.AssignmentResult, error)
	GetOrCreateSession(ctx context.Context, poolID, batchID string) (string, error)
	UpdateSessionStats(ctx context.Context, sessionID string, success bool, responseTime *time.Duration) error
	CloseSession(ctx context.Context, sessionID string) error
	GetPoolRecommendation(ctx context.Context, platform string) (*models.AssignmentResult, error)
	GetPoolsByLoad(ctx context.Context, limit int) ([]models.PoolLoad, error)
}

type ipAssignmentService struct {
	pools    repository.IpPoolRepository
	sessions repository.IpSessionRepository
	posts    repository.ScheduledPostRepository
	logger   *zap.Logger
}

func NewIPAssignmentService(
	pools repository.IpPoolRepository,
	sessions repository.IpSessionRepository,
	posts repository.ScheduledPostRepository,
	logger *zap.Logger) IPAssignmentService {
	return &ipAssignmentService{
		pools:    pools,
		sessions: sessions,
		posts:    posts,
		logger:   logger,
	}
}

func (s *ipAssignmentService) AssignIPPool(ctx context.Context, postID string, opts AssignmentOptions) (*models.AssignmentResult, error) {
	res, err := s.selectPool(ctx, opts)
	if err != nil || res.Pool == nil {
		return res, err
	}

	sessionID, err := s.GetOrCreateSession(ctx, res.Pool.ID, opts.BatchID)
	if err != nil {
		return nil, err
	}
	res.SessionID = sessionID

	if postID != "" {
		if err := s.posts.SetIPPool(ctx, postID, res.Pool.ID); err != nil {
			s.logger.Warn("failed to stamp ip pool on post",
				zap.String("post_id", postID), zap.String("pool_id", res.Pool.ID), zap.Error(err))
		}
	}

	s.logger.Info("ip pool assigned",
		zap.String("post_id", postID),
		zap.String("pool_id", res.Pool.ID),
		zap.Float64("score", res.Score))
	return res, nil
}

// selectPool scores the eligible pools without touching sessions.
func (s *ipAssignmentService) selectPool(ctx context.Context, opts AssignmentOptions) (*models.AssignmentResult, error) {
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active pools: %w", err)
	}
	if len(pools) == 0 {
		return &models.AssignmentResult{Reason: ReasonNoActivePools, Alternatives: []models.PoolScore{}}, nil
	}

	excluded := make(map[string]bool, len(opts.ExcludePoolIDs))
	for _, id := range opts.ExcludePoolIDs {
		excluded[id] = true
	}

	var available []*models.IpPool
	for _, p := range pools {
		if !excluded[p.ID] {
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		alternatives, err := s.scorePools(ctx, pools)
		if err != nil {
			return nil, err
		}
		if len(alternatives) > maxAlternatives {
			alternatives = alternatives[:maxAlternatives]
		}
		return &models.AssignmentResult{Reason: ReasonAllExcluded, Alternatives: alternatives}, nil
	}

	var healthy, unhealthy []*models.IpPool
	for _, p := range available {
		if healthOf(p) < MinimumHealthThreshold {
			unhealthy = append(unhealthy, p)
			continue
		}
		healthy = append(healthy, p)
	}
	if len(healthy) == 0 {
		alternatives, err := s.scorePools(ctx, unhealthy)
		if err != nil {
			return nil, err
		}
		return &models.AssignmentResult{Reason: ReasonAllUnhealthy, Alternatives: alternatives}, nil
	}

	scored, err := s.scorePools(ctx, healthy)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	best := scored[0]
	alternatives := scored[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}
	return &models.AssignmentResult{
		Pool:         best.Pool,
		Score:        best.Score,
		Breakdown:    best.Breakdown,
		Reason:       reasonSelectedByScore,
		Alternatives: append([]models.PoolScore{}, alternatives...),
	}, nil
}

func (s *ipAssignmentService) scorePools(ctx context.Context, pools []*models.IpPool) ([]models.PoolScore, error) {
	out := make([]models.PoolScore, 0, len(pools))
	for _, p := range pools {
		sessions, err := s.sessions.ListByPool(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list sessions of pool %s: %w", p.ID, err)
		}
		out = append(out, scorePool(p, sessions))
	}
	return out, nil
}

// scorePool weighs health 40, load 30, cost 15 and performance 15. The total
// is the exact weighted sum of the reported breakdown.
func scorePool(p *models.IpPool, sessions []*models.IpPoolSession) models.PoolScore {
	b := models.ScoreBreakdown{
		Health:      float64(healthOf(p)),
		Load:        loadScore(sessions),
		Cost:        costScore(p),
		Performance: performanceScore(sessions),
	}
	total := (b.Health*weightHealth + b.Load*weightLoad + b.Cost*weightCost + b.Performance*weightPerformance) / 100
	return models.PoolScore{Pool: p, Score: total, Breakdown: b}
}

func healthOf(p *models.IpPool) int {
	if p.HealthScore == nil {
		return defaultSubScore
	}
	return *p.HealthScore
}

func activeSession(sessions []*models.IpPoolSession) *models.IpPoolSession {
	for _, sess := range sessions {
		if sess.Active() {
			return sess
		}
	}
	return nil
}

func loadScore(sessions []*models.IpPoolSession) float64 {
	active := activeSession(sessions)
	if active == nil {
		return 100
	}
	load := 100 - float64(active.Attempts())/SessionBatchThreshold*100
	if load < 0 {
		return 0
	}
	return load
}

func costScore(p *models.IpPool) float64 {
	if p.CostPerMonth == nil || *p.CostPerMonth <= 0 {
		return defaultSubScore
	}
	perPost := *p.CostPerMonth / estimatedPostsPerMonth
	switch {
	case perPost < 5:
		return 100
	case perPost < 10:
		return 70
	case perPost < 15:
		return 50
	default:
		return 30
	}
}

func performanceScore(sessions []*models.IpPoolSession) float64 {
	var ok, failed int
	for _, sess := range sessions {
		ok += sess.PostsCount
		failed += sess.FailCount
	}
	if ok+failed == 0 {
		return defaultSubScore
	}
	return float64(ok) / float64(ok+failed) * 100
}

// AssignBatchIPPools assigns posts in order, excluding pools already handed
// out in this call so consecutive posts spread across pools.
func (s *ipAssignmentService) AssignBatchIPPools(ctx context.Context, postIDs []string, opts AssignmentOptions) (map[string]*models.AssignmentResult, error) {
	out := make(map[string]*models.AssignmentResult, len(postIDs))
	used := append([]string(nil), opts.ExcludePoolIDs...)

	for _, postID := range postIDs {
		postOpts := opts
		postOpts.ExcludePoolIDs = used

		res, err := s.AssignIPPool(ctx, postID, postOpts)
		if err != nil {
			return out, fmt.Errorf("assign pool for post %s: %w", postID, err)
		}
		out[postID] = res
		if res.Pool != nil {
			used = append(used, res.Pool.ID)
		}
	}
	return out, nil
}

// GetOrCreateSession returns the open session of the pool, opening one
// when none exists. The storage layer allows at most one open session per
// pool, so concurrent callers end up with the same id.
func (s *ipAssignmentService) GetOrCreateSession(ctx context.Context, poolID, batchID string) (string, error) {
	active, err := s.sessions.GetActive(ctx, poolID)
	if err != nil {
		return "", err
	}
	if active != nil {
		return active.ID, nil
	}

	pool, err := s.pools.GetByID(ctx, poolID)
	if err != nil {
		return "", err
	}
	if pool == nil {
		return "", fmt.Errorf("pool %s: %w", poolID, ErrPoolNotFound)
	}

	sess, err := s.sessions.OpenSession(ctx, poolID, pool.CurrentIP, batchID)
	if err != nil {
		return "", fmt.Errorf("open session for pool %s: %w", poolID, err)
	}
	return sess.ID, nil
}

func (s *ipAssignmentService) UpdateSessionStats(ctx context.Context, sessionID string, success bool, responseTime *time.Duration) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	sess.RecordAttempt(success, responseTime)
	return s.sessions.SaveStats(ctx, sess)
}

func (s *ipAssignmentService) CloseSession(ctx context.Context, sessionID string) error {
	return s.sessions.Close(ctx, sessionID, time.Now())
}

func (s *ipAssignmentService) GetPoolRecommendation(ctx context.Context, platform string) (*models.AssignmentResult, error) {
	return s.selectPool(ctx, AssignmentOptions{Platform: platform})
}

// GetPoolsByLoad lists active pools, least loaded first.
func (s *ipAssignmentService) GetPoolsByLoad(ctx context.Context, limit int) ([]models.PoolLoad, error) {
	if limit <= 0 {
		limit = defaultPoolsByLoadLimit
	}
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.PoolLoad, 0, len(pools))
	for _, p := range pools {
		sessions, err := s.sessions.ListByPool(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		pl := models.PoolLoad{Pool: p, LoadScore: loadScore(sessions)}
		if active := activeSession(sessions); active != nil {
			pl.ActivePosts = active.Attempts()
		}
		out = append(out, pl)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].LoadScore > out[j].LoadScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
