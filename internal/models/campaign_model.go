package models

import (
	"slices"
	"time"
)

type CampaignStrategy struct {
	Name       string    `json:"name"`
	Platforms  []string  `json:"platforms"`
	ContentIDs []string  `json:"content_ids"`
	AccountIDs []string  `json:"account_ids"`
	StartTime  time.Time `json:"start_time"`
	Priority   int       `json:"priority"`
	Template   string    `json:"template,omitempty"`
}

const (
	ManualStrategyFastest  = "fastest"
	ManualStrategyBalanced = "balanced"
	ManualStrategyRegional = "regional"
)

type PlannedPost struct {
	PostID          string    `json:"post_id,omitempty"` // set for manual campaigns
	ContentID       string    `json:"content_id,omitempty"`
	SocialAccountID string    `json:"social_account_id"`
	Platform        string    `json:"platform"`
	Caption         string    `json:"caption"`
	Hashtags        []string  `json:"hashtags"`
	AssetIDs        []string  `json:"asset_ids"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	Priority        int       `json:"priority"`
}

type WorkerAssignment struct {
	Worker            *Worker       `json:"worker"`
	Posts             []PlannedPost `json:"posts"`
	EstimatedDuration int           `json:"estimated_duration_minutes"`
}

type Timeline struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	TotalJobs         int       `json:"total_jobs"`
	ConcurrentWorkers int       `json:"concurrent_workers"`
}

type AntiDetection struct {
	IPDiversityScore float64 `json:"ip_diversity_score"`
	TimingVariation  int     `json:"timing_variation_minutes"`
}

type OrchestrationPlan struct {
	CampaignID        string             `json:"campaign_id"`
	Strategy          CampaignStrategy   `json:"strategy"`
	Manual            bool               `json:"manual"`
	WorkerAssignments []WorkerAssignment `json:"worker_assignments"`
	Timeline          Timeline           `json:"timeline"`
	AntiDetection     AntiDetection      `json:"anti_detection"`
	TotalCapacity     int                `json:"total_capacity"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Clone copies the plan down to its planned posts. Workers are copied by
// value.
func (p *OrchestrationPlan) Clone() *OrchestrationPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Strategy.Platforms = slices.Clone(p.Strategy.Platforms)
	out.Strategy.ContentIDs = slices.Clone(p.Strategy.ContentIDs)
	out.Strategy.AccountIDs = slices.Clone(p.Strategy.AccountIDs)
	out.WorkerAssignments = slices.Clone(p.WorkerAssignments)
	for i := range out.WorkerAssignments {
		a := &out.WorkerAssignments[i]
		if a.Worker != nil {
			w := *a.Worker
			a.Worker = &w
		}
		a.Posts = slices.Clone(a.Posts)
	}
	return &out
}

const (
	CampaignPlanning  = "planning"
	CampaignReady     = "ready"
	CampaignRunning   = "running"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignFailed    = "failed"

	PhaseInitialization = "initialization"
	PhaseExecution      = "execution"
	PhaseCancelled      = "cancelled"
	PhaseCompleted      = "completed"
)

type CampaignProgress struct {
	TotalJobs     int    `json:"total_jobs"`
	CompletedJobs int    `json:"completed_jobs"`
	FailedJobs    int    `json:"failed_jobs"`
	ActiveWorkers int    `json:"active_workers"`
	CurrentPhase  string `json:"current_phase"`
}

type CampaignMetrics struct {
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	AvgExecutionTime float64    `json:"avg_execution_time_seconds"`
	SuccessRate      float64    `json:"success_rate"`
	Throughput       float64    `json:"throughput_per_minute"`
}

type CampaignExecution struct {
	CampaignID string             `json:"campaign_id"`
	Status     string             `json:"status"`
	Plan       *OrchestrationPlan `json:"plan"`
	Progress   CampaignProgress   `json:"progress"`
	Metrics    CampaignMetrics    `json:"metrics"`
	Error      string             `json:"error,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Copy returns a deep enough copy for handing state outside a lock.
func (c *CampaignExecution) Copy() *CampaignExecution {
	out := *c
	out.Plan = c.Plan.Clone()
	if c.Metrics.CompletedAt != nil {
		t := *c.Metrics.CompletedAt
		out.Metrics.CompletedAt = &t
	}
	return &out
}

// ProgressUpdate carries absolute counters; nil fields are left untouched.
type ProgressUpdate struct {
	CompletedJobs *int
	FailedJobs    *int
	CurrentPhase  string
}

type OrchestratorOverview struct {
	ActiveCampaigns int       `json:"active_campaigns"`
	TotalWorkers    int       `json:"total_workers"`
	OnlineWorkers   int       `json:"online_workers"`
	QueuedJobs      int       `json:"queued_jobs"`
	CompletedToday  int       `json:"completed_today"`
	AvgSuccessRate  float64   `json:"avg_success_rate"`
	SystemHealth    string    `json:"system_health"` // healthy, degraded, error
	GeneratedAt     time.Time `json:"generated_at"`
}
