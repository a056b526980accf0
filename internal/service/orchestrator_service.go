package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postdispatch/internal/metrics"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	campaignIDAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyz"
	defaultAvgExecutionSecs = 60
	minTimingVariation      = 5
	timingVariationSpread   = 16
	maxAssignDelayMillis    = 5000
	degradedOnlineRatio     = 0.7
	manualCampaignName      = "Manual Campaign"
)

// WorkerNotifier tells a remote worker which posts it owns in a campaign.
type WorkerNotifier interface {
	NotifyAssignment(ctx context.Context, campaignID, workerID string, postIDs []string, delay time.Duration) error
}

type ManualCampaignRequest struct {
	PostIDs  []string `json:"post_ids"`
	Strategy string   `json:"strategy,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

type OrchestratorService interface {
	PlanCampaignFromSatellite(ctx context.Context, strategy models.CampaignStrategy) (*models.OrchestrationPlan, error)
	CreateManualCampaign(ctx context.Context, req ManualCampaignRequest) (*models.OrchestrationPlan, error)
	GetPlan(ctx context.Context, campaignID string) (*models.OrchestrationPlan, error)
	ExecuteCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	GetCampaignStatus(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	ListCampaigns(ctx context.Context) ([]*models.CampaignExecution, error)
	PauseCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	ResumeCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	CancelCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error)
	UpdateCampaignProgress(ctx context.Context, campaignID string, update models.ProgressUpdate) (*models.CampaignExecution, error)
	GetOrchestratorOverview(ctx context.Context) (*models.OrchestratorOverview, error)
	Restore(ctx context.Context) error
	CampaignTracker
}

type orchestratorService struct {
	posts     repository.ScheduledPostRepository
	accounts  repository.SocialAccountRepository
	content   repository.ContentRepository
	workers   repository.WorkerRepository
	campaigns repository.CampaignRepository
	notifier  WorkerNotifier
	metrics   *metrics.Collector
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
	intn      func(n int) int

	mu         sync.RWMutex
	plans      map[string]*models.OrchestrationPlan
	executions map[string]*models.CampaignExecution
}

func NewOrchestratorService(
	posts repository.ScheduledPostRepository,
	accounts repository.SocialAccountRepository,
	content repository.ContentRepository,
	workers repository.WorkerRepository,
	campaigns repository.CampaignRepository,
	notifier WorkerNotifier,
	m *metrics.Collector,
	loc *time.Location,
	logger *zap.Logger) OrchestratorService {
	if loc == nil {
		loc = time.UTC
	}
	return &orchestratorService{
		posts:      posts,
		accounts:   accounts,
		content:    content,
		workers:    workers,
		campaigns:  campaigns,
		notifier:   notifier,
		metrics:    m,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
		intn:       rand.Intn,
		plans:      make(map[string]*models.OrchestrationPlan),
		executions: make(map[string]*models.CampaignExecution),
	}
}

func (s *orchestratorService) newCampaignID() (string, error) {
	suffix, err := gonanoid.Generate(campaignIDAlphabet, 9)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("campaign_%d_%s", s.now().UnixMilli(), suffix), nil
}

// availableWorkers returns the online, enabled workers that support at
// least one of the platforms, and their combined concurrency.
func (s *orchestratorService) availableWorkers(ctx context.Context, platforms []string) ([]*models.Worker, int, error) {
	all, err := s.workers.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list workers: %w", err)
	}
	var out []*models.Worker
	capacity := 0
	for _, w := range all {
		if !w.Available() {
			continue
		}
		for _, p := range platforms {
			if w.SupportsPlatform(p) {
				out = append(out, w)
				capacity += w.Concurrency()
				break
			}
		}
	}
	return out, capacity, nil
}

func balancedScore(w *models.Worker) float64 {
	return w.SuccessRate * float64(w.Concurrency())
}

func sortWorkers(workers []*models.Worker, strategy string) {
	switch strategy {
	case models.ManualStrategyFastest:
		sort.SliceStable(workers, func(i, j int) bool { return workers[i].AvgExecutionTime < workers[j].AvgExecutionTime })
	case models.ManualStrategyRegional:
		sort.SliceStable(workers, func(i, j int) bool { return workers[i].Region < workers[j].Region })
	default:
		sort.SliceStable(workers, func(i, j int) bool { return balancedScore(workers[i]) > balancedScore(workers[j]) })
	}
}

// estimateMinutes is the wall time a worker needs for jobs at its
// concurrency, rounded up to whole minutes.
func estimateMinutes(jobs int, w *models.Worker) int {
	avg := w.AvgExecutionTime
	if avg <= 0 {
		avg = defaultAvgExecutionSecs
	}
	seconds := float64(jobs) / float64(w.Concurrency()) * float64(avg)
	return int(math.Ceil(seconds / 60))
}

// distribute deals posts round-robin over the already sorted workers.
func distribute(posts []models.PlannedPost, workers []*models.Worker) []models.WorkerAssignment {
	buckets := make([][]models.PlannedPost, len(workers))
	for i, p := range posts {
		idx := i % len(workers)
		buckets[idx] = append(buckets[idx], p)
	}

	var out []models.WorkerAssignment
	for i, w := range workers {
		if len(buckets[i]) == 0 {
			continue
		}
		out = append(out, models.WorkerAssignment{
			Worker:            w,
			Posts:             buckets[i],
			EstimatedDuration: estimateMinutes(len(buckets[i]), w),
		})
	}
	return out
}

func (s *orchestratorService) buildPlan(
	campaignID string,
	strategy models.CampaignStrategy,
	assignments []models.WorkerAssignment,
	capacity int,
	manual bool) *models.OrchestrationPlan {
	now := s.now()
	start := strategy.StartTime
	if start.Before(now) {
		start = now
	}

	regions := make(map[string]bool)
	total, longest := 0, 0
	for _, a := range assignments {
		regions[a.Worker.Region] = true
		total += len(a.Posts)
		if a.EstimatedDuration > longest {
			longest = a.EstimatedDuration
		}
	}
	diversity := 0.0
	if len(assignments) > 0 {
		diversity = math.Min(100, float64(len(regions))/float64(len(assignments))*100)
	}

	return &models.OrchestrationPlan{
		CampaignID:        campaignID,
		Strategy:          strategy,
		Manual:            manual,
		WorkerAssignments: assignments,
		Timeline: models.Timeline{
			Start:             start,
			End:               start.Add(time.Duration(longest) * time.Minute),
			TotalJobs:         total,
			ConcurrentWorkers: len(assignments),
		},
		AntiDetection: models.AntiDetection{
			IPDiversityScore: diversity,
			TimingVariation:  minTimingVariation + s.intn(timingVariationSpread),
		},
		TotalCapacity: capacity,
		CreatedAt:     now,
	}
}

// PlanCampaignFromSatellite crosses the strategy's content with its
// accounts, keeping platform compatible pairs, and deals the resulting
// posts over the best workers first.
func (s *orchestratorService) PlanCampaignFromSatellite(ctx context.Context, strategy models.CampaignStrategy) (*models.OrchestrationPlan, error) {
	if len(strategy.Platforms) == 0 {
		return nil, errors.New("strategy needs at least one platform")
	}

	workers, capacity, err := s.availableWorkers(ctx, strategy.Platforms)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, ErrNoWorkersAvailable
	}

	candidates, err := s.candidatePosts(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidatePosts
	}

	campaignID, err := s.newCampaignID()
	if err != nil {
		return nil, err
	}
	sortWorkers(workers, models.ManualStrategyBalanced)
	plan := s.buildPlan(campaignID, strategy, distribute(candidates, workers), capacity, false)

	s.mu.Lock()
	s.plans[campaignID] = plan
	s.mu.Unlock()

	s.logger.Info("campaign planned",
		zap.String("campaign_id", campaignID),
		zap.Int("workers", plan.Timeline.ConcurrentWorkers),
		zap.Int("jobs", plan.Timeline.TotalJobs))
	return plan, nil
}

func (s *orchestratorService) candidatePosts(ctx context.Context, strategy models.CampaignStrategy) ([]models.PlannedPost, error) {
	if len(strategy.ContentIDs) == 0 || len(strategy.AccountIDs) == 0 {
		return nil, nil
	}
	content, err := s.content.List(ctx, models.ContentFilter{IDs: strategy.ContentIDs})
	if err != nil {
		return nil, fmt.Errorf("load strategy content: %w", err)
	}
	accounts, err := s.accounts.ListByIDs(ctx, strategy.AccountIDs)
	if err != nil {
		return nil, fmt.Errorf("load strategy accounts: %w", err)
	}

	allowed := make(map[string]bool, len(strategy.Platforms))
	for _, p := range strategy.Platforms {
		allowed[p] = true
	}
	priority := strategy.Priority
	if priority == 0 {
		priority = models.DefaultPostPriority
	}

	var out []models.PlannedPost
	for _, c := range content {
		for _, a := range accounts {
			if !allowed[a.Platform] || !c.SupportsPlatform(a.Platform) {
				continue
			}
			out = append(out, models.PlannedPost{
				ContentID:       c.ID,
				SocialAccountID: a.ID,
				Platform:        a.Platform,
				Caption:         c.BaseContent,
				Hashtags:        c.Hashtags,
				AssetIDs:        c.AssetIDs,
				Priority:        priority,
			})
		}
	}
	return out, nil
}

// CreateManualCampaign plans already scheduled posts over the workers,
// ordered by the requested strategy.
func (s *orchestratorService) CreateManualCampaign(ctx context.Context, req ManualCampaignRequest) (*models.OrchestrationPlan, error) {
	var planned []models.PlannedPost
	var platforms []string
	seen := make(map[string]bool)
	for _, id := range req.PostIDs {
		p, err := s.posts.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load post %s: %w", id, err)
		}
		if p == nil {
			continue
		}
		if !seen[p.Platform] {
			seen[p.Platform] = true
			platforms = append(platforms, p.Platform)
		}
		planned = append(planned, models.PlannedPost{
			PostID:          p.ID,
			ContentID:       p.Analytics.ContentLibraryID(),
			SocialAccountID: p.SocialAccountID,
			Platform:        p.Platform,
			Caption:         p.Caption,
			Hashtags:        p.Hashtags,
			AssetIDs:        p.AssetIDs,
			ScheduledTime:   p.ScheduledTime,
			Priority:        p.Priority,
		})
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("no valid posts found for campaign: %w", ErrPostNotFound)
	}

	workers, capacity, err := s.availableWorkers(ctx, platforms)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, ErrNoWorkersAvailable
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = models.ManualStrategyBalanced
	}
	campaignID, err := s.newCampaignID()
	if err != nil {
		return nil, err
	}
	sortWorkers(workers, strategy)
	plan := s.buildPlan(campaignID, models.CampaignStrategy{
		Name:      manualCampaignName,
		Platforms: platforms,
		Priority:  req.Priority,
	}, distribute(planned, workers), capacity, true)

	s.mu.Lock()
	s.plans[campaignID] = plan
	s.mu.Unlock()

	s.logger.Info("manual campaign planned",
		zap.String("campaign_id", campaignID),
		zap.String("strategy", strategy),
		zap.Int("jobs", plan.Timeline.TotalJobs))
	return plan, nil
}

func (s *orchestratorService) GetPlan(ctx context.Context, campaignID string) (*models.OrchestrationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[campaignID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", campaignID, ErrCampaignNotFound)
	}
	return plan.Clone(), nil
}

// ExecuteCampaign turns a plan into scheduled posts tagged for the
// orchestrator, each with its own jitter, then notifies every worker of
// its share after a short random delay.
func (s *orchestratorService) ExecuteCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	s.mu.Lock()
	plan, ok := s.plans[campaignID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("plan %s: %w", campaignID, ErrCampaignNotFound)
	}
	if _, running := s.executions[campaignID]; running {
		s.mu.Unlock()
		return nil, fmt.Errorf("campaign %s already executed: %w", campaignID, ErrInvalidCampaignState)
	}
	exec := &models.CampaignExecution{
		CampaignID: campaignID,
		Status:     models.CampaignRunning,
		Plan:       plan,
		Progress: models.CampaignProgress{
			TotalJobs:     plan.Timeline.TotalJobs,
			ActiveWorkers: plan.Timeline.ConcurrentWorkers,
			CurrentPhase:  models.PhaseInitialization,
		},
		Metrics:   models.CampaignMetrics{StartedAt: s.now()},
		UpdatedAt: s.now(),
	}
	s.executions[campaignID] = exec
	persisted := exec.Copy()
	// Stored plans are never written in place. materialize fills a private
	// copy that replaces them once it returns.
	plan = plan.Clone()
	s.mu.Unlock()
	s.persist(ctx, persisted)

	err := s.materialize(ctx, plan)
	s.mu.Lock()
	s.plans[campaignID] = plan
	exec.Plan = plan
	s.mu.Unlock()

	if err != nil {
		snapshot := s.mutate(campaignID, func(e *models.CampaignExecution) {
			e.Status = models.CampaignFailed
			e.Error = err.Error()
		})
		s.persist(ctx, snapshot)
		s.logger.Error("campaign execution failed", zap.String("campaign_id", campaignID), zap.Error(err))
		return snapshot, err
	}

	s.notifyWorkers(ctx, plan)

	snapshot := s.mutate(campaignID, func(e *models.CampaignExecution) {
		if e.Progress.CurrentPhase == models.PhaseInitialization {
			e.Progress.CurrentPhase = models.PhaseExecution
		}
	})
	s.persist(ctx, snapshot)
	s.refreshGauge()

	s.logger.Info("campaign started",
		zap.String("campaign_id", campaignID), zap.Int("jobs", plan.Timeline.TotalJobs))
	return snapshot, nil
}

// materialize creates (or, for manual plans, retags) the posts of every
// assignment and records their ids on the plan.
func (s *orchestratorService) materialize(ctx context.Context, plan *models.OrchestrationPlan) error {
	base := plan.Timeline.Start
	if now := s.now(); base.Before(now) {
		base = now
	}

	for ai := range plan.WorkerAssignments {
		a := &plan.WorkerAssignments[ai]
		var created []*models.ScheduledPost
		var createdIdx []int

		for pi := range a.Posts {
			pp := &a.Posts[pi]
			jitter := 0
			if plan.AntiDetection.TimingVariation > 0 {
				jitter = s.intn(plan.AntiDetection.TimingVariation)
			}
			at := base.Add(time.Duration(jitter) * time.Minute)
			analytics := models.Analytics{
				models.AnalyticsOrchestratorManaged: true,
				models.AnalyticsAssignedWorker:      a.Worker.WorkerID,
				models.AnalyticsOrchestrationPlan:   plan.CampaignID,
				models.AnalyticsJitterApplied:       jitter,
			}
			if pp.ContentID != "" {
				analytics[models.AnalyticsContentLibraryID] = pp.ContentID
			}
			if plan.Strategy.Template != "" {
				analytics[models.AnalyticsSatelliteTemplate] = plan.Strategy.Template
			}

			if pp.PostID != "" {
				existing, err := s.posts.GetByID(ctx, pp.PostID)
				if err != nil {
					return fmt.Errorf("load post %s: %w", pp.PostID, err)
				}
				merged := models.Analytics{}
				if existing != nil {
					merged = existing.Analytics.Clone()
				}
				for k, v := range analytics {
					merged[k] = v
				}
				if err := s.posts.Retag(ctx, pp.PostID, at, merged); err != nil {
					return fmt.Errorf("retag post %s: %w", pp.PostID, err)
				}
				pp.ScheduledTime = at
				continue
			}

			pp.ScheduledTime = at
			created = append(created, &models.ScheduledPost{
				SocialAccountID: pp.SocialAccountID,
				Platform:        pp.Platform,
				Caption:         pp.Caption,
				Hashtags:        pp.Hashtags,
				AssetIDs:        pp.AssetIDs,
				ScheduledTime:   at,
				Timezone:        "UTC",
				Status:          models.PostStatusScheduled,
				Priority:        pp.Priority,
				BatchID:         plan.CampaignID,
				Analytics:       analytics,
			})
			createdIdx = append(createdIdx, pi)
		}

		if len(created) == 0 {
			continue
		}
		ids, err := s.posts.CreateBatch(ctx, created)
		if err != nil {
			return fmt.Errorf("create posts for worker %s: %w", a.Worker.WorkerID, err)
		}
		for i, id := range ids {
			a.Posts[createdIdx[i]].PostID = id
		}
	}
	return nil
}

func (s *orchestratorService) notifyWorkers(ctx context.Context, plan *models.OrchestrationPlan) {
	if s.notifier == nil {
		return
	}
	for _, a := range plan.WorkerAssignments {
		ids := make([]string, 0, len(a.Posts))
		for _, p := range a.Posts {
			ids = append(ids, p.PostID)
		}
		delay := time.Duration(s.intn(maxAssignDelayMillis+1)) * time.Millisecond
		if err := s.notifier.NotifyAssignment(ctx, plan.CampaignID, a.Worker.WorkerID, ids, delay); err != nil {
			s.logger.Warn("failed to notify worker",
				zap.String("campaign_id", plan.CampaignID), zap.String("worker_id", a.Worker.WorkerID), zap.Error(err))
		}
	}
}

// mutate applies fn under the lock and returns a snapshot, or nil when the
// campaign is unknown.
func (s *orchestratorService) mutate(campaignID string, fn func(e *models.CampaignExecution)) *models.CampaignExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[campaignID]
	if !ok {
		return nil
	}
	fn(e)
	e.UpdatedAt = s.now()
	return e.Copy()
}

func (s *orchestratorService) persist(ctx context.Context, e *models.CampaignExecution) {
	if e == nil || s.campaigns == nil {
		return
	}
	if err := s.campaigns.Save(ctx, e); err != nil {
		s.logger.Warn("failed to persist campaign", zap.String("campaign_id", e.CampaignID), zap.Error(err))
	}
}

func (s *orchestratorService) refreshGauge() {
	s.mu.RLock()
	active := 0
	for _, e := range s.executions {
		if e.Status == models.CampaignRunning {
			active++
		}
	}
	s.mu.RUnlock()
	s.metrics.SetActiveCampaigns(active)
}

func (s *orchestratorService) GetCampaignStatus(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignNotFound)
	}
	return e.Copy(), nil
}

func (s *orchestratorService) ListCampaigns(ctx context.Context) ([]*models.CampaignExecution, error) {
	s.mu.RLock()
	out := make([]*models.CampaignExecution, 0, len(s.executions))
	for _, e := range s.executions {
		out = append(out, e.Copy())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Metrics.StartedAt.After(out[j].Metrics.StartedAt) })
	return out, nil
}

func (s *orchestratorService) CampaignStatus(ctx context.Context, campaignID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[campaignID]
	if !ok {
		return "", false
	}
	return e.Status, true
}

// transition moves a campaign to `to` when its status is one of `from`.
func (s *orchestratorService) transition(ctx context.Context, campaignID, to, phase string, from ...string) (*models.CampaignExecution, error) {
	var stateErr error
	snapshot := s.mutate(campaignID, func(e *models.CampaignExecution) {
		for _, f := range from {
			if e.Status == f {
				e.Status = to
				if phase != "" {
					e.Progress.CurrentPhase = phase
				}
				return
			}
		}
		stateErr = fmt.Errorf("campaign %s is %s: %w", campaignID, e.Status, ErrInvalidCampaignState)
	})
	if snapshot == nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignNotFound)
	}
	if stateErr != nil {
		return nil, stateErr
	}
	s.persist(ctx, snapshot)
	s.refreshGauge()
	s.logger.Info("campaign status changed", zap.String("campaign_id", campaignID), zap.String("status", to))
	return snapshot, nil
}

func (s *orchestratorService) PauseCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	return s.transition(ctx, campaignID, models.CampaignPaused, "", models.CampaignRunning)
}

func (s *orchestratorService) ResumeCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	return s.transition(ctx, campaignID, models.CampaignRunning, "", models.CampaignPaused)
}

func (s *orchestratorService) CancelCampaign(ctx context.Context, campaignID string) (*models.CampaignExecution, error) {
	return s.transition(ctx, campaignID, models.CampaignFailed, models.PhaseCancelled,
		models.CampaignPlanning, models.CampaignReady, models.CampaignRunning, models.CampaignPaused)
}

// applyProgress recomputes the success rate and completes the campaign
// once every job has settled. Cancelled campaigns stay cancelled.
func (s *orchestratorService) applyProgress(e *models.CampaignExecution) {
	settled := e.Progress.CompletedJobs + e.Progress.FailedJobs
	if settled > 0 {
		e.Metrics.SuccessRate = float64(e.Progress.CompletedJobs) / float64(settled) * 100
	}
	if mins := s.now().Sub(e.Metrics.StartedAt).Minutes(); mins > 0 {
		e.Metrics.Throughput = float64(settled) / mins
	}
	if settled >= e.Progress.TotalJobs && (e.Status == models.CampaignRunning || e.Status == models.CampaignPaused) {
		now := s.now()
		e.Status = models.CampaignCompleted
		e.Progress.CurrentPhase = models.PhaseCompleted
		e.Metrics.CompletedAt = &now
	}
}

func (s *orchestratorService) UpdateCampaignProgress(ctx context.Context, campaignID string, update models.ProgressUpdate) (*models.CampaignExecution, error) {
	snapshot := s.mutate(campaignID, func(e *models.CampaignExecution) {
		if update.CompletedJobs != nil {
			e.Progress.CompletedJobs = *update.CompletedJobs
		}
		if update.FailedJobs != nil {
			e.Progress.FailedJobs = *update.FailedJobs
		}
		if update.CurrentPhase != "" {
			e.Progress.CurrentPhase = update.CurrentPhase
		}
		s.applyProgress(e)
	})
	if snapshot == nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignNotFound)
	}
	s.persist(ctx, snapshot)
	if snapshot.Status == models.CampaignCompleted {
		s.refreshGauge()
	}
	return snapshot, nil
}

// RecordJobResult adds one settled job to the campaign counters.
func (s *orchestratorService) RecordJobResult(ctx context.Context, campaignID string, success bool) error {
	snapshot := s.mutate(campaignID, func(e *models.CampaignExecution) {
		if success {
			e.Progress.CompletedJobs++
		} else {
			e.Progress.FailedJobs++
		}
		s.applyProgress(e)
	})
	if snapshot == nil {
		return fmt.Errorf("campaign %s: %w", campaignID, ErrCampaignNotFound)
	}
	s.persist(ctx, snapshot)
	if snapshot.Status == models.CampaignCompleted {
		s.refreshGauge()
		s.logger.Info("campaign completed",
			zap.String("campaign_id", campaignID), zap.Float64("success_rate", snapshot.Metrics.SuccessRate))
	}
	return nil
}

func (s *orchestratorService) GetOrchestratorOverview(ctx context.Context) (*models.OrchestratorOverview, error) {
	workers, err := s.workers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	queued, err := s.posts.CountByStatus(ctx, models.PostStatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("count queued posts: %w", err)
	}
	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	completed, err := s.posts.CountPublishedSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("count published posts: %w", err)
	}

	out := &models.OrchestratorOverview{
		TotalWorkers:   len(workers),
		QueuedJobs:     queued,
		CompletedToday: completed,
		GeneratedAt:    s.now(),
	}
	var rateSum float64
	for _, w := range workers {
		if w.Available() {
			out.OnlineWorkers++
			rateSum += w.SuccessRate
		}
	}
	if out.OnlineWorkers > 0 {
		out.AvgSuccessRate = rateSum / float64(out.OnlineWorkers)
	}

	switch {
	case out.OnlineWorkers == 0:
		out.SystemHealth = "error"
	case float64(out.OnlineWorkers) < float64(out.TotalWorkers)*degradedOnlineRatio:
		out.SystemHealth = "degraded"
	default:
		out.SystemHealth = "healthy"
	}

	s.mu.RLock()
	for _, e := range s.executions {
		if e.Status == models.CampaignRunning {
			out.ActiveCampaigns++
		}
	}
	s.mu.RUnlock()
	s.metrics.SetActiveCampaigns(out.ActiveCampaigns)
	return out, nil
}

// Restore reloads campaigns saved by a previous process.
func (s *orchestratorService) Restore(ctx context.Context) error {
	if s.campaigns == nil {
		return nil
	}
	saved, err := s.campaigns.List(ctx)
	if err != nil {
		return fmt.Errorf("load campaigns: %w", err)
	}

	s.mu.Lock()
	for _, e := range saved {
		s.executions[e.CampaignID] = e
		if e.Plan != nil {
			s.plans[e.CampaignID] = e.Plan
		}
	}
	s.mu.Unlock()

	s.refreshGauge()
	s.logger.Info("campaigns restored", zap.Int("count", len(saved)))
	return nil
}
