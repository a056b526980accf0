package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	SelectionAll        = "all"
	SelectionRandom     = "random"
	SelectionRoundRobin = "round_robin"

	recentUseWindow            = 7 * 24 * time.Hour
	smartContentLimit          = 20
	defaultAccountsPerPlatform = 3
	maxScheduleOffsetMinutes   = 30
	maxBatchSlots              = 500
	topUsedContent             = 5
)

type SmartScheduleOptions struct {
	TargetTime             time.Time `json:"target_time"`
	Platforms              []string  `json:"platforms"`
	TagIDs                 []string  `json:"tag_ids,omitempty"`
	Priority               string    `json:"priority,omitempty"`
	AccountSelection       string    `json:"account_selection,omitempty"`
	MaxAccountsPerPlatform int       `json:"max_accounts_per_platform,omitempty"`
	IncludeRecentlyUsed    bool      `json:"include_recently_used,omitempty"`
}

type BatchScheduleOptions struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	IntervalHours float64   `json:"interval_hours"`
	SmartScheduleOptions
}

type SmartScheduleService interface {
	GenerateSmartSchedule(ctx context.Context, opts SmartScheduleOptions) ([]*models.ScheduledPost, error)
	BatchGenerateSmartSchedule(ctx context.Context, opts BatchScheduleOptions) ([]*models.ScheduledPost, error)
	GetContentAnalytics(ctx context.Context) (*models.ContentAnalytics, error)
}

type smartScheduleService struct {
	posts    repository.ScheduledPostRepository
	accounts repository.SocialAccountRepository
	content  repository.ContentRepository
	logger   *zap.Logger
	now      func() time.Time
	intn     func(n int) int
	shuffle  func(n int, swap func(i, j int))
}

func NewSmartScheduleService(
	posts repository.ScheduledPostRepository,
	accounts repository.SocialAccountRepository,
	content repository.ContentRepository,
	logger *zap.Logger) SmartScheduleService {
	return &smartScheduleService{
		posts:    posts,
		accounts: accounts,
		content:  content,
		logger:   logger,
		now:      time.Now,
		intn:     rand.Intn,
		shuffle:  rand.Shuffle,
	}
}

// selectContent returns active content for any of the platforms, best
// priority first, then least used. Items used in the last seven days are
// left out unless asked for.
func (s *smartScheduleService) selectContent(ctx context.Context, opts SmartScheduleOptions) ([]*models.ContentItem, error) {
	f := models.ContentFilter{
		Status:   models.ContentStatusActive,
		TagIDs:   opts.TagIDs,
		Priority: opts.Priority,
	}
	if !opts.IncludeRecentlyUsed {
		since := s.now().Add(-recentUseWindow)
		f.UnusedSince = &since
	}
	items, err := s.content.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	out := make([]*models.ContentItem, 0, len(items))
	for _, c := range items {
		for _, p := range opts.Platforms {
			if c.SupportsPlatform(p) {
				out = append(out, c)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := models.PriorityRank(out[i].Priority), models.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return out[i].UsageCount < out[j].UsageCount
	})
	if len(out) > smartContentLimit {
		out = out[:smartContentLimit]
	}
	return out, nil
}

func (s *smartScheduleService) selectAccounts(ctx context.Context, opts SmartScheduleOptions) ([]*models.SocialAccount, error) {
	limit := opts.MaxAccountsPerPlatform
	if limit <= 0 {
		limit = defaultAccountsPerPlatform
	}

	var selected []*models.SocialAccount
	for _, platform := range opts.Platforms {
		all, err := s.accounts.ListByPlatform(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("list %s accounts: %w", platform, err)
		}
		var usable []*models.SocialAccount
		for _, a := range all {
			if a.Usable() {
				usable = append(usable, a)
			}
		}

		switch opts.AccountSelection {
		case SelectionRandom:
			s.shuffle(len(usable), func(i, j int) { usable[i], usable[j] = usable[j], usable[i] })
		case SelectionAll:
		default:
			sort.SliceStable(usable, func(i, j int) bool {
				return lastPostUnix(usable[i]) < lastPostUnix(usable[j])
			})
		}
		if len(usable) > limit {
			usable = usable[:limit]
		}
		selected = append(selected, usable...)
	}
	return selected, nil
}

func lastPostUnix(a *models.SocialAccount) int64 {
	if a.LastPost == nil {
		return 0
	}
	return a.LastPost.Unix()
}

// GenerateSmartSchedule pairs ranked content with the selected accounts,
// wrapping around the content list, and creates one post per account a
// few minutes after the target time.
func (s *smartScheduleService) GenerateSmartSchedule(ctx context.Context, opts SmartScheduleOptions) ([]*models.ScheduledPost, error) {
	if len(opts.Platforms) == 0 {
		return nil, errors.New("at least one platform is required")
	}
	if opts.TargetTime.IsZero() {
		opts.TargetTime = s.now()
	}

	content, err := s.selectContent(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, ErrNoContentAvailable
	}
	accounts, err := s.selectAccounts(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccountsAvailable
	}

	posts := make([]*models.ScheduledPost, 0, len(accounts))
	for i, account := range accounts {
		c := content[i%len(content)]
		offset := time.Duration(s.intn(maxScheduleOffsetMinutes)) * time.Minute
		posts = append(posts, &models.ScheduledPost{
			SocialAccountID: account.ID,
			Platform:        account.Platform,
			Caption:         c.BaseContent,
			Hashtags:        append([]string(nil), c.Hashtags...),
			AssetIDs:        append([]string(nil), c.AssetIDs...),
			ScheduledTime:   opts.TargetTime.Add(offset),
			Timezone:        "UTC",
			Status:          models.PostStatusScheduled,
			Priority:        models.DefaultPostPriority,
			Analytics: models.Analytics{
				models.AnalyticsContentLibraryID: c.ID,
				models.AnalyticsSmartGenerated:   true,
				models.AnalyticsPriority:         c.Priority,
				models.AnalyticsTagIDs:           c.TagIDs,
			},
		})
	}

	if _, err := s.posts.CreateBatch(ctx, posts); err != nil {
		return nil, fmt.Errorf("create scheduled posts: %w", err)
	}
	s.logger.Info("smart schedule generated",
		zap.Int("posts", len(posts)),
		zap.Int("content_items", len(content)),
		zap.Time("target_time", opts.TargetTime))
	return posts, nil
}

// BatchGenerateSmartSchedule runs GenerateSmartSchedule for every slot in
// [start, end) spaced by the interval.
func (s *smartScheduleService) BatchGenerateSmartSchedule(ctx context.Context, opts BatchScheduleOptions) ([]*models.ScheduledPost, error) {
	if opts.IntervalHours <= 0 {
		return nil, errors.New("interval_hours must be positive")
	}
	if !opts.EndTime.After(opts.StartTime) {
		return nil, errors.New("end_time must be after start_time")
	}
	interval := time.Duration(opts.IntervalHours * float64(time.Hour))

	var all []*models.ScheduledPost
	slots := 0
	for at := opts.StartTime; at.Before(opts.EndTime); at = at.Add(interval) {
		if slots == maxBatchSlots {
			s.logger.Warn("batch schedule truncated", zap.Int("slots", slots))
			break
		}
		slots++

		slot := opts.SmartScheduleOptions
		slot.TargetTime = at
		posts, err := s.GenerateSmartSchedule(ctx, slot)
		if err != nil {
			if errors.Is(err, ErrNoContentAvailable) || errors.Is(err, ErrNoAccountsAvailable) {
				if len(all) == 0 {
					return nil, err
				}
				break
			}
			return all, err
		}
		all = append(all, posts...)
	}
	return all, nil
}

func (s *smartScheduleService) GetContentAnalytics(ctx context.Context) (*models.ContentAnalytics, error) {
	items, err := s.content.List(ctx, models.ContentFilter{})
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	out := &models.ContentAnalytics{
		TotalContent: len(items),
		ByPriority:   map[string]int{},
		TopUsed:      []*models.ContentItem{},
	}
	for _, c := range items {
		if c.Status == models.ContentStatusActive {
			out.ActiveContent++
		}
		out.TotalUsage += c.UsageCount
		if c.UsageCount == 0 {
			out.NeverUsed++
		}
		p := c.Priority
		if p == "" {
			p = models.ContentPriorityNormal
		}
		out.ByPriority[p]++
	}

	top := append([]*models.ContentItem(nil), items...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].UsageCount > top[j].UsageCount })
	for _, c := range top {
		if len(out.TopUsed) == topUsedContent || c.UsageCount == 0 {
			break
		}
		out.TopUsed = append(out.TopUsed, c)
	}
	return out, nil
}
