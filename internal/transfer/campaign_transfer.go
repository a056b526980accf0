package transfer

import (
	"errors"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
)

type PlanCampaignRequest struct {
	Name       string     `json:"name"`
	Platforms  []string   `json:"platforms"`
	ContentIDs []string   `json:"content_ids"`
	AccountIDs []string   `json:"account_ids"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	Priority   int        `json:"priority,omitempty"`
	Template   string     `json:"template,omitempty"`
	Execute    bool       `json:"execute,omitempty"`
}

func (r PlanCampaignRequest) Validate() error {
	switch {
	case len(r.Platforms) == 0:
		return errors.New("platforms must not be empty")
	case len(r.ContentIDs) == 0:
		return errors.New("content_ids must not be empty")
	case len(r.AccountIDs) == 0:
		return errors.New("account_ids must not be empty")
	}
	return nil
}

func (r PlanCampaignRequest) Strategy() models.CampaignStrategy {
	s := models.CampaignStrategy{
		Name:       r.Name,
		Platforms:  r.Platforms,
		ContentIDs: r.ContentIDs,
		AccountIDs: r.AccountIDs,
		Priority:   r.Priority,
		Template:   r.Template,
	}
	if r.StartTime != nil {
		s.StartTime = *r.StartTime
	}
	return s
}

type ManualCampaignRequest struct {
	PostIDs  []string `json:"post_ids"`
	Strategy string   `json:"strategy,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Execute  bool     `json:"execute,omitempty"`
}

func (r ManualCampaignRequest) Validate() error {
	if len(r.PostIDs) == 0 {
		return errors.New("post_ids must not be empty")
	}
	switch r.Strategy {
	case "", models.ManualStrategyFastest, models.ManualStrategyBalanced, models.ManualStrategyRegional:
		return nil
	}
	return errors.New("strategy must be fastest, balanced or regional")
}

type CampaignProgressRequest struct {
	CompletedJobs *int   `json:"completed_jobs,omitempty"`
	FailedJobs    *int   `json:"failed_jobs,omitempty"`
	CurrentPhase  string `json:"current_phase,omitempty"`
}

func (r CampaignProgressRequest) Update() models.ProgressUpdate {
	return models.ProgressUpdate{
		CompletedJobs: r.CompletedJobs,
		FailedJobs:    r.FailedJobs,
		CurrentPhase:  r.CurrentPhase,
	}
}

// CampaignResponse pairs a plan with its execution once it has started.
type CampaignResponse struct {
	Plan      *models.OrchestrationPlan `json:"plan"`
	Execution *models.CampaignExecution `json:"execution,omitempty"`
}
