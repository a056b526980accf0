package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/maheshrc27/postdispatch/internal/metrics"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	OutcomePosted   = "posted"
	OutcomeRetry    = "retry"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
	OutcomeSkipped  = "skipped"

	defaultUpcomingLimit = 50
	campaignCancelledMsg = "campaign cancelled"
)

// CampaignTracker is the part of the orchestrator the publisher reports to.
type CampaignTracker interface {
	CampaignStatus(ctx context.Context, campaignID string) (string, bool)
	RecordJobResult(ctx context.Context, campaignID string, success bool) error
}

// TokenOpener decrypts page tokens read from storage.
type TokenOpener interface {
	DecryptTokens(tokens models.PageTokens) (models.PageTokens, error)
}

type TickSummary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Due       int           `json:"due"`
	Posted    int           `json:"posted"`
	Retried   int           `json:"retried"`
	Failed    int           `json:"failed"`
	Deferred  int           `json:"deferred"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
}

func (t *TickSummary) add(outcome string) {
	switch outcome {
	case OutcomePosted:
		t.Posted++
	case OutcomeRetry:
		t.Retried++
	case OutcomeFailed:
		t.Failed++
	case OutcomeDeferred:
		t.Deferred++
	case OutcomeSkipped:
		t.Skipped++
	}
}

type PublishService interface {
	ProcessDuePosts(ctx context.Context) (*TickSummary, error)
	ProcessPost(ctx context.Context, post *models.ScheduledPost) (string, error)
	TriggerPost(ctx context.Context, postID string) (string, error)
	UpcomingPosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error)
}

type PublishDeps struct {
	Posts      repository.ScheduledPostRepository
	Accounts   repository.SocialAccountRepository
	Content    repository.ContentRepository
	Limits     LimitService
	Assignment IPAssignmentService
	Rotation   IPRotationService
	Assets     AssetService
	Adapters   PlatformAdapters
	Campaigns  CampaignTracker
	Tokens     TokenOpener
	Metrics    *metrics.Collector
}

type publishService struct {
	PublishDeps
	maxRetries int
	backoffCap time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewPublishService(cfg config.Scheduler, deps PublishDeps, logger *zap.Logger) PublishService {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &publishService{
		PublishDeps: deps,
		maxRetries:  maxRetries,
		backoffCap:  cfg.BackoffCap,
		logger:      logger,
		now:         time.Now,
	}
}

// ProcessDuePosts runs one scheduler tick. Orchestrator-managed posts go
// first; each post is isolated so one failure never stops the rest.
func (s *publishService) ProcessDuePosts(ctx context.Context) (*TickSummary, error) {
	summary := &TickSummary{StartedAt: s.now()}
	defer func() {
		summary.Duration = s.now().Sub(summary.StartedAt)
		s.Metrics.ObserveTick(summary.Duration)
	}()

	due, err := s.Posts.ListDue(ctx, summary.StartedAt, s.maxRetries)
	if err != nil {
		return summary, fmt.Errorf("list due posts: %w", err)
	}
	summary.Due = len(due)
	if len(due) == 0 {
		return summary, nil
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].Analytics.OrchestratorManaged() && !due[j].Analytics.OrchestratorManaged()
	})

	s.logger.Info("processing due posts", zap.Int("count", len(due)))
	for _, post := range due {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.processSafely(ctx, post)
		if err != nil {
			summary.Errors++
			s.logger.Error("post processing error", zap.String("post_id", post.ID), zap.Error(err))
			continue
		}
		summary.add(outcome)
	}
	return summary, nil
}

func (s *publishService) processSafely(ctx context.Context, post *models.ScheduledPost) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing post %s: %v", post.ID, r)
		}
	}()
	return s.ProcessPost(ctx, post)
}

// ProcessPost moves one due post through its state machine. The returned
// error is reserved for storage failures; publishing failures are recorded
// on the post and reported through the outcome.
func (s *publishService) ProcessPost(ctx context.Context, post *models.ScheduledPost) (string, error) {
	campaignID := ""
	if post.Analytics.OrchestratorManaged() {
		campaignID = post.Analytics.CampaignID()
	}

	cancelled := false
	if campaignID != "" && s.Campaigns != nil {
		if status, ok := s.Campaigns.CampaignStatus(ctx, campaignID); ok {
			switch status {
			case models.CampaignPaused:
				s.logger.Debug("campaign paused, skipping post",
					zap.String("post_id", post.ID), zap.String("campaign_id", campaignID))
				return OutcomeSkipped, nil
			case models.CampaignFailed:
				cancelled = true
			}
		}
	}

	claimed, err := s.Posts.Claim(ctx, post.ID)
	if err != nil {
		return "", fmt.Errorf("claim post %s: %w", post.ID, err)
	}
	if !claimed {
		return OutcomeSkipped, nil
	}

	if cancelled {
		return s.fail(ctx, post, campaignID, nil, permanent(errors.New(campaignCancelledMsg)))
	}

	account, err := s.Accounts.GetByID(ctx, post.SocialAccountID)
	if err != nil {
		return s.fail(ctx, post, campaignID, nil, fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return s.fail(ctx, post, campaignID, nil, permanentf("account %s: %w", post.SocialAccountID, ErrAccountNotFound))
	}

	adapter, err := s.Adapters.adapterFor(post.Platform)
	if err != nil {
		return s.fail(ctx, post, campaignID, nil, err)
	}

	if s.Limits != nil {
		capacity := s.Limits.CheckPostCapacity(ctx, post.ID, account.ID, account.GroupID, account.FacebookAppID)
		if !capacity.CanPost {
			return s.deferPost(ctx, post, capacity)
		}
	}

	assignment := s.assignPool(ctx, post)

	result, elapsed, err := s.publish(ctx, post, account, adapter)
	if err != nil {
		return s.fail(ctx, post, campaignID, assignment, err)
	}
	return s.succeed(ctx, post, account, campaignID, assignment, result, elapsed)
}

// deferPost hands the post back to the loop once every reported violation
// has a free slot again. The retry budget is untouched.
func (s *publishService) deferPost(ctx context.Context, post *models.ScheduledPost, capacity *models.PostingCapacity) (string, error) {
	at := capacity.WindowResetAt
	reasons := make([]string, 0, len(capacity.Violations))
	for i, v := range capacity.Violations {
		if i == 0 || v.NextAvailableSlot.After(at) {
			at = v.NextAvailableSlot
		}
		reasons = append(reasons, fmt.Sprintf("%s %s %d/%d", v.Scope, v.Rule.LimitType, v.CurrentUsage, v.MaxAllowed))
	}
	if at.IsZero() || at.Before(s.now()) {
		at = s.now().Add(time.Minute)
	}

	reason := "Rate limit reached: " + strings.Join(reasons, ", ")
	if err := s.Posts.Release(ctx, post.ID, at, reason); err != nil {
		return "", fmt.Errorf("release post %s: %w", post.ID, err)
	}
	s.Metrics.PostProcessed(post.Platform, OutcomeDeferred)
	s.logger.Info("post deferred by rate limit",
		zap.String("post_id", post.ID), zap.Time("next_attempt", at), zap.String("reason", reason))
	return OutcomeDeferred, nil
}

// assignPool never blocks posting: any error or unavailability is logged
// and the post goes out without IP tracking.
func (s *publishService) assignPool(ctx context.Context, post *models.ScheduledPost) *models.AssignmentResult {
	if s.Assignment == nil {
		return nil
	}
	res, err := s.Assignment.AssignIPPool(ctx, post.ID, AssignmentOptions{
		Platform: post.Platform,
		Priority: post.Priority,
		BatchID:  post.BatchID,
	})
	if err != nil {
		s.logger.Warn("ip assignment failed, posting without ip tracking", zap.String("post_id", post.ID), zap.Error(err))
		return nil
	}
	if res.Pool == nil {
		s.logger.Warn("no ip pool available, posting without ip tracking",
			zap.String("post_id", post.ID), zap.String("reason", res.Reason))
		return nil
	}
	return res
}

func (s *publishService) publish(ctx context.Context, post *models.ScheduledPost, account *models.SocialAccount, adapter PlatformAdapter) (*PlatformPostResult, time.Duration, error) {
	tokens := account.PageAccessTokens
	if s.Tokens != nil {
		opened, err := s.Tokens.DecryptTokens(tokens)
		if err != nil {
			return nil, 0, permanentf("decrypt page tokens: %w", err)
		}
		tokens = opened
	}
	acc := *account
	acc.PageAccessTokens = tokens
	token, ok := acc.ActivePageToken()
	if !ok {
		return nil, 0, permanent(ErrNoActivePageToken)
	}

	content := PostContent{Message: buildPostMessage(post.Caption, post.Hashtags)}
	if s.Assets != nil && len(post.AssetIDs) > 0 {
		urls, err := s.Assets.ResolveURLs(ctx, post.AssetIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve assets: %w", err)
		}
		content.ImageURLs = urls
	}

	start := s.now()
	res, err := adapter.PostToPage(ctx, token.PageID, token.AccessToken, content)
	elapsed := s.now().Sub(start)
	if err != nil {
		return nil, elapsed, err
	}
	if res == nil || res.PostID == "" {
		return nil, elapsed, errors.New("platform returned no post id")
	}
	return res, elapsed, nil
}

func (s *publishService) succeed(
	ctx context.Context,
	post *models.ScheduledPost,
	account *models.SocialAccount,
	campaignID string,
	assignment *models.AssignmentResult,
	result *PlatformPostResult,
	elapsed time.Duration) (string, error) {
	now := s.now()
	published := models.PublishResult{
		PlatformPostID: result.PostID,
		PlatformURL:    result.PostURL,
		PublishedAt:    now,
	}
	if assignment != nil {
		published.IPSnapshot = assignment.Pool.CurrentIP
	}
	if err := s.Posts.MarkPosted(ctx, post.ID, published); err != nil {
		return "", fmt.Errorf("mark post %s posted: %w", post.ID, err)
	}

	if s.Assets != nil {
		if err := s.Assets.RecordUsage(ctx, post.AssetIDs); err != nil {
			s.logger.Warn("failed to record asset usage", zap.String("post_id", post.ID), zap.Error(err))
		}
	}
	if contentID := post.Analytics.ContentLibraryID(); contentID != "" && s.Content != nil {
		if err := s.Content.IncrementUsage(ctx, contentID, now); err != nil {
			s.logger.Warn("failed to record content usage", zap.String("content_id", contentID), zap.Error(err))
		}
	}
	if err := s.Accounts.TouchLastPost(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to update account last post", zap.String("account_id", account.ID), zap.Error(err))
	}
	if assignment != nil {
		if err := s.Assignment.UpdateSessionStats(ctx, assignment.SessionID, true, &elapsed); err != nil {
			s.logger.Warn("failed to update session stats", zap.String("session_id", assignment.SessionID), zap.Error(err))
		}
	}
	if s.Limits != nil {
		s.Limits.ClearCache(ctx)
	}
	if campaignID != "" && s.Campaigns != nil {
		if err := s.Campaigns.RecordJobResult(ctx, campaignID, true); err != nil {
			s.logger.Warn("failed to record campaign progress", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}

	s.Metrics.PostProcessed(post.Platform, OutcomePosted)
	s.logger.Info("post published",
		zap.String("post_id", post.ID),
		zap.String("platform", post.Platform),
		zap.String("platform_post_id", result.PostID),
		zap.Duration("elapsed", elapsed))

	s.autoRotate(ctx)
	return OutcomePosted, nil
}

// fail consumes one retry. Permanent errors and exhausted budgets end in
// failed; anything else goes back to scheduled after the backoff delay.
func (s *publishService) fail(ctx context.Context, post *models.ScheduledPost, campaignID string, assignment *models.AssignmentResult, cause error) (string, error) {
	now := s.now()
	f := models.PostFailure{
		RetryCount:    post.RetryCount + 1,
		ErrorMessage:  cause.Error(),
		ScheduledTime: post.ScheduledTime,
		LastRetryAt:   now,
	}

	terminal := IsPermanent(cause) || f.RetryCount >= s.maxRetries
	if terminal {
		f.Status = models.PostStatusFailed
	} else {
		f.Status = models.PostStatusScheduled
		f.ScheduledTime = now.Add(RetryDelay(f.RetryCount, s.backoffCap))
	}

	if err := s.Posts.RecordFailure(ctx, post.ID, f); err != nil {
		return "", fmt.Errorf("record failure of post %s: %w", post.ID, err)
	}

	if assignment != nil {
		if err := s.Assignment.UpdateSessionStats(ctx, assignment.SessionID, false, nil); err != nil {
			s.logger.Warn("failed to update session stats", zap.String("session_id", assignment.SessionID), zap.Error(err))
		}
	}

	outcome := OutcomeRetry
	if terminal {
		outcome = OutcomeFailed
		if campaignID != "" && s.Campaigns != nil {
			if err := s.Campaigns.RecordJobResult(ctx, campaignID, false); err != nil {
				s.logger.Warn("failed to record campaign progress", zap.String("campaign_id", campaignID), zap.Error(err))
			}
		}
		s.logger.Error("post failed permanently",
			zap.String("post_id", post.ID), zap.Int("retry_count", f.RetryCount), zap.Error(cause))
	} else {
		s.logger.Warn("post failed, will retry",
			zap.String("post_id", post.ID), zap.Int("retry_count", f.RetryCount),
			zap.Time("next_attempt", f.ScheduledTime), zap.Error(cause))
	}
	s.Metrics.PostProcessed(post.Platform, outcome)

	s.autoRotate(ctx)
	return outcome, nil
}

func (s *publishService) autoRotate(ctx context.Context) {
	if s.Rotation == nil {
		return
	}
	results, err := s.Rotation.AutoRotatePools(ctx)
	if err != nil {
		s.logger.Warn("auto rotation failed", zap.Error(err))
		return
	}
	for _, r := range results {
		if !r.Success {
			s.logger.Warn("auto rotation attempt failed", zap.String("pool_id", r.PoolID), zap.String("error", r.Error))
		}
	}
}

// TriggerPost processes one post right away, regardless of its scheduled
// time.
func (s *publishService) TriggerPost(ctx context.Context, postID string) (string, error) {
	post, err := s.Posts.GetByID(ctx, postID)
	if err != nil {
		return "", err
	}
	if post == nil {
		return "", fmt.Errorf("post %s: %w", postID, ErrPostNotFound)
	}
	if post.Status != models.PostStatusScheduled {
		return OutcomeSkipped, nil
	}
	return s.processSafely(ctx, post)
}

func (s *publishService) UpcomingPosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	return s.Posts.ListUpcoming(ctx, s.now(), limit)
}
