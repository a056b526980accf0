package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postdispatch/internal/cache"
	"github.com/maheshrc27/postdispatch/internal/metrics"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	maxSuggestedTimes = 10
	recoverySlots     = 5
	optimalSpacing    = 2 * time.Hour
	// unboundedCapacity is reported when no active rule applies.
	unboundedCapacity = math.MaxInt32
)

var optimalHours = []int{9, 12, 15, 18, 21}

type LimitStatusFilter struct {
	Scope   string
	ScopeID string
}

type LimitService interface {
	CheckPostingCapacity(ctx context.Context, accountID, groupID, appID string) *models.PostingCapacity
	CheckPostCapacity(ctx context.Context, postID, accountID, groupID, appID string) *models.PostingCapacity
	CheckBulkPostingCapacity(ctx context.Context, posts []models.BulkPostRequest) *models.BulkCapacityResult
	GetLimitStatus(ctx context.Context, f LimitStatusFilter) *models.LimitStatusReport
	Rules() []models.LimitRule
	ImportRules(rules []models.LimitRule) error
	ClearCache(ctx context.Context)
}

type limitService struct {
	posts    repository.ScheduledPostRepository
	groups   repository.AccountGroupRepository
	accounts repository.SocialAccountRepository
	usage    cache.UsageCache
	metrics  *metrics.Collector
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time

	mu    sync.RWMutex
	rules []models.LimitRule
}

func NewLimitService(
	posts repository.ScheduledPostRepository,
	groups repository.AccountGroupRepository,
	accounts repository.SocialAccountRepository,
	usage cache.UsageCache,
	m *metrics.Collector,
	loc *time.Location,
	logger *zap.Logger) LimitService {
	if loc == nil {
		loc = time.UTC
	}
	return &limitService{
		posts:    posts,
		groups:   groups,
		accounts: accounts,
		usage:    usage,
		metrics:  m,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
		rules:    DefaultLimitRules(),
	}
}

// DefaultLimitRules returns the rule set a fresh engine starts with.
func DefaultLimitRules() []models.LimitRule {
	return []models.LimitRule{
		{ID: "app-hourly", Scope: models.ScopeApp, LimitType: models.LimitPostsPerHour, MaxCount: 600, TimeWindowHours: 1, Priority: 1, IsActive: true},
		{ID: "app-daily", Scope: models.ScopeApp, LimitType: models.LimitPostsPerDay, MaxCount: 10000, TimeWindowHours: 24, Priority: 2, IsActive: true},
		{ID: "group-hourly", Scope: models.ScopeGroup, LimitType: models.LimitPostsPerHour, MaxCount: 50, TimeWindowHours: 1, Priority: 3, IsActive: true},
		{ID: "group-daily", Scope: models.ScopeGroup, LimitType: models.LimitPostsPerDay, MaxCount: 500, TimeWindowHours: 24, Priority: 4, IsActive: true},
		{ID: "account-hourly", Scope: models.ScopeAccount, LimitType: models.LimitPostsPerHour, MaxCount: 5, TimeWindowHours: 1, Priority: 5, IsActive: true},
		{ID: "account-daily", Scope: models.ScopeAccount, LimitType: models.LimitPostsPerDay, MaxCount: 50, TimeWindowHours: 24, Priority: 6, IsActive: true},
	}
}

func (s *limitService) Rules() []models.LimitRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LimitRule(nil), s.rules...)
}

func (s *limitService) ImportRules(rules []models.LimitRule) error {
	imported := make([]models.LimitRule, 0, len(rules))
	for i, r := range rules {
		switch r.Scope {
		case models.ScopeApp, models.ScopeGroup, models.ScopeAccount:
		default:
			return fmt.Errorf("rule %d: unknown scope %q", i, r.Scope)
		}
		if r.TimeWindowHours <= 0 {
			return fmt.Errorf("rule %d: time window must be positive", i)
		}
		if r.MaxCount < 0 {
			return fmt.Errorf("rule %d: max count must not be negative", i)
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		imported = append(imported, r)
	}

	s.mu.Lock()
	s.rules = imported
	s.mu.Unlock()

	s.ClearCache(context.Background())
	return nil
}

func (s *limitService) ClearCache(ctx context.Context) {
	s.usage.Flush(ctx)
}

// rulesFor returns the active rules of one scope id, sorted by priority. A
// rule bound to the id replaces the scope default of the same limit type.
// Group defaults are scaled by the group weight.
func (s *limitService) rulesFor(ctx context.Context, scope, scopeID string) []models.LimitRule {
	s.mu.RLock()
	defaults := map[string]models.LimitRule{}
	specific := map[string]models.LimitRule{}
	for _, r := range s.rules {
		if !r.IsActive || r.Scope != scope {
			continue
		}
		switch r.ScopeID {
		case "":
			defaults[r.LimitType] = r
		case scopeID:
			specific[r.LimitType] = r
		}
	}
	s.mu.RUnlock()

	weight := 1.0
	if scope == models.ScopeGroup && len(defaults) > 0 {
		weight = s.groupWeight(ctx, scopeID)
	}

	out := make([]models.LimitRule, 0, len(defaults)+len(specific))
	for limitType, r := range defaults {
		if _, overridden := specific[limitType]; overridden {
			continue
		}
		if weight != 1 {
			r.MaxCount = int(math.Floor(float64(r.MaxCount) * weight))
		}
		out = append(out, r)
	}
	for _, r := range specific {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *limitService) groupWeight(ctx context.Context, groupID string) float64 {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		s.logger.Warn("failed to load account group, using weight 1", zap.String("group_id", groupID), zap.Error(err))
		return 1
	}
	if g == nil || g.Weight <= 0 {
		return 1
	}
	return g.Weight
}

type ruleEval struct {
	rule     models.LimitRule
	count    int
	violated bool
	resetAt  time.Time
}

func (e ruleEval) remaining() int {
	if r := e.rule.MaxCount - e.count; r > 0 {
		return r
	}
	return 0
}

func (s *limitService) evaluate(ctx context.Context, scope, scopeID, excludeID string, rule models.LimitRule, now time.Time) ruleEval {
	usage := s.windowUsage(ctx, scope, scopeID, excludeID, rule, now)

	resetAt := now.Add(rule.Window())
	if usage.Oldest != nil {
		resetAt = usage.Oldest.Add(rule.Window())
	}
	return ruleEval{
		rule:     rule,
		count:    usage.Count,
		violated: usage.Count >= rule.MaxCount,
		resetAt:  resetAt,
	}
}

// windowUsage reads through the cache. Storage errors count as zero usage.
// Queries that leave a post out of the count bypass the cache.
func (s *limitService) windowUsage(ctx context.Context, scope, scopeID, excludeID string, rule models.LimitRule, now time.Time) models.WindowUsage {
	key := cache.Key(scope, scopeID, rule.LimitType)
	if excludeID == "" {
		if usage, ok := s.usage.Get(ctx, key); ok {
			return usage
		}
	}

	usage, err := s.posts.WindowUsage(ctx, models.UsageQuery{
		Scope:         scope,
		ScopeID:       scopeID,
		Start:         now.Add(-rule.Window()),
		End:           now,
		ExcludePostID: excludeID,
	})
	if err != nil {
		s.logger.Error("usage query failed, treating as zero",
			zap.String("scope", scope), zap.String("scope_id", scopeID),
			zap.String("limit_type", rule.LimitType), zap.Error(err))
		return models.WindowUsage{}
	}

	if excludeID == "" {
		s.usage.Set(ctx, key, usage)
	}
	return usage
}

func violationOf(scope, scopeID string, e ruleEval, now time.Time) models.LimitViolation {
	return models.LimitViolation{
		Scope:             scope,
		ScopeID:           scopeID,
		Rule:              e.rule,
		CurrentUsage:      e.count,
		MaxAllowed:        e.rule.MaxCount,
		SuggestedDelay:    minutesUntil(now, e.resetAt),
		NextAvailableSlot: e.resetAt,
	}
}

func minutesUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}

type scopeRef struct {
	scope string
	id    string
}

// CheckPostingCapacity evaluates app, group and account rules in that order
// and stops at the first scope with violations.
func (s *limitService) CheckPostingCapacity(ctx context.Context, accountID, groupID, appID string) *models.PostingCapacity {
	return s.checkCapacity(ctx, "", accountID, groupID, appID)
}

// CheckPostCapacity is CheckPostingCapacity for a post that already sits in
// the window; the post itself is not counted as usage.
func (s *limitService) CheckPostCapacity(ctx context.Context, postID, accountID, groupID, appID string) *models.PostingCapacity {
	return s.checkCapacity(ctx, postID, accountID, groupID, appID)
}

func (s *limitService) checkCapacity(ctx context.Context, excludeID, accountID, groupID, appID string) *models.PostingCapacity {
	now := s.now()

	var scopes []scopeRef
	if appID != "" {
		scopes = append(scopes, scopeRef{models.ScopeApp, appID})
	}
	if groupID != "" {
		scopes = append(scopes, scopeRef{models.ScopeGroup, groupID})
	}
	if accountID != "" {
		scopes = append(scopes, scopeRef{models.ScopeAccount, accountID})
	}

	var evaluated []ruleEval
	for _, sc := range scopes {
		var violations []models.LimitViolation
		for _, rule := range s.rulesFor(ctx, sc.scope, sc.id) {
			e := s.evaluate(ctx, sc.scope, sc.id, excludeID, rule, now)
			evaluated = append(evaluated, e)
			if e.violated {
				violations = append(violations, violationOf(sc.scope, sc.id, e, now))
			}
		}

		if len(violations) > 0 {
			earliest := violations[0].NextAvailableSlot
			for _, v := range violations[1:] {
				if v.NextAvailableSlot.Before(earliest) {
					earliest = v.NextAvailableSlot
				}
			}
			for range violations {
				s.metrics.LimitViolation(sc.scope)
			}
			return &models.PostingCapacity{
				CanPost:                false,
				WindowResetAt:          earliest,
				Violations:             violations,
				SuggestedScheduleTimes: recoveryTimes(earliest),
			}
		}
	}

	maxPosts, resetAt := unboundedCapacity, now
	for _, e := range evaluated {
		if r := e.remaining(); r < maxPosts {
			maxPosts, resetAt = r, e.resetAt
		}
	}

	return &models.PostingCapacity{
		CanPost:                true,
		MaxPosts:               maxPosts,
		WindowResetAt:          resetAt,
		Violations:             []models.LimitViolation{},
		SuggestedScheduleTimes: s.optimalTimes(now, maxPosts),
	}
}

// optimalTimes spaces candidates two hours apart and snaps each to the
// nearest engagement hour. Only future, distinct times are kept.
func (s *limitService) optimalTimes(now time.Time, maxPosts int) []time.Time {
	n := maxPosts
	if n > maxSuggestedTimes {
		n = maxSuggestedTimes
	}

	out := []time.Time{}
	seen := map[int64]bool{}
	local := now.In(s.loc)
	for i := 0; i < n; i++ {
		candidate := local.Add(time.Duration(i) * optimalSpacing)
		hour := nearestOptimalHour(candidate.Hour())
		aligned := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), hour, 0, 0, 0, s.loc)
		if !aligned.After(now) || seen[aligned.Unix()] {
			continue
		}
		seen[aligned.Unix()] = true
		out = append(out, aligned)
	}
	return out
}

func nearestOptimalHour(hour int) int {
	best := optimalHours[0]
	for _, h := range optimalHours[1:] {
		if abs(h-hour) < abs(best-hour) {
			best = h
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func recoveryTimes(anchor time.Time) []time.Time {
	out := make([]time.Time, recoverySlots)
	for i := range out {
		out[i] = anchor.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// CheckBulkPostingCapacity admits posts in input order. Capacity is read once
// per (account, group, app) key and admissions are counted against it.
func (s *limitService) CheckBulkPostingCapacity(ctx context.Context, posts []models.BulkPostRequest) *models.BulkCapacityResult {
	res := &models.BulkCapacityResult{
		AllowedPosts:          []models.BulkPostRequest{},
		BlockedPosts:          []models.BlockedPost{},
		SuggestedAlternatives: []models.SuggestedAlternative{},
	}

	capacities := map[string]*models.PostingCapacity{}
	admitted := map[string]int{}

	for _, p := range posts {
		key := p.AccountID + "|" + p.GroupID + "|" + p.AppID
		capacity, ok := capacities[key]
		if !ok {
			capacity = s.CheckPostingCapacity(ctx, p.AccountID, p.GroupID, p.AppID)
			capacities[key] = capacity
		}

		switch {
		case !capacity.CanPost:
			res.BlockedPosts = append(res.BlockedPosts, models.BlockedPost{
				Post:   p,
				Reason: "Limit violated: " + capacity.Violations[0].Scope,
			})
			res.SuggestedAlternatives = append(res.SuggestedAlternatives, models.SuggestedAlternative{
				Post:          p,
				SuggestedTime: capacity.SuggestedScheduleTimes[0],
				Reason:        "Next available slot after limit reset",
			})
		case admitted[key] >= capacity.MaxPosts:
			res.BlockedPosts = append(res.BlockedPosts, models.BlockedPost{
				Post:   p,
				Reason: "Capacity exceeded",
			})
			res.SuggestedAlternatives = append(res.SuggestedAlternatives, models.SuggestedAlternative{
				Post:          p,
				SuggestedTime: capacity.WindowResetAt,
				Reason:        "Window resets at this time",
			})
		default:
			admitted[key]++
			res.AllowedPosts = append(res.AllowedPosts, p)
		}
	}

	res.CanScheduleAll = len(res.BlockedPosts) == 0
	return res
}

func (s *limitService) GetLimitStatus(ctx context.Context, f LimitStatusFilter) *models.LimitStatusReport {
	now := s.now()
	report := &models.LimitStatusReport{Scopes: []models.ScopeStatus{}, GeneratedAt: now}

	var targets []models.ScopeStatus

	var accounts []*models.SocialAccount
	if f.Scope == "" || f.Scope == models.ScopeApp || f.Scope == models.ScopeAccount {
		var err error
		accounts, err = s.accounts.ListAll(ctx)
		if err != nil {
			s.logger.Error("failed to list accounts for limit status", zap.Error(err))
		}
	}

	if f.Scope == "" || f.Scope == models.ScopeApp {
		seen := map[string]bool{}
		for _, a := range accounts {
			if a.FacebookAppID == "" || seen[a.FacebookAppID] {
				continue
			}
			if f.ScopeID != "" && a.FacebookAppID != f.ScopeID {
				continue
			}
			seen[a.FacebookAppID] = true
			targets = append(targets, models.ScopeStatus{Scope: models.ScopeApp, ScopeID: a.FacebookAppID})
		}
	}

	if f.Scope == "" || f.Scope == models.ScopeGroup {
		groups, err := s.groups.List(ctx)
		if err != nil {
			s.logger.Error("failed to list groups for limit status", zap.Error(err))
		}
		for _, g := range groups {
			if f.ScopeID != "" && g.ID != f.ScopeID {
				continue
			}
			targets = append(targets, models.ScopeStatus{Scope: models.ScopeGroup, ScopeID: g.ID, Name: g.Name})
		}
	}

	if f.Scope == "" || f.Scope == models.ScopeAccount {
		for _, a := range accounts {
			if f.ScopeID != "" && a.ID != f.ScopeID {
				continue
			}
			targets = append(targets, models.ScopeStatus{Scope: models.ScopeAccount, ScopeID: a.ID, Name: a.AccountName})
		}
	}

	for _, t := range targets {
		t.Rules = []models.RuleUsage{}
		for _, rule := range s.rulesFor(ctx, t.Scope, t.ScopeID) {
			e := s.evaluate(ctx, t.Scope, t.ScopeID, "", rule, now)
			t.Rules = append(t.Rules, models.RuleUsage{
				Rule:              e.rule,
				CurrentUsage:      e.count,
				MaxAllowed:        e.rule.MaxCount,
				Remaining:         e.remaining(),
				Violated:          e.violated,
				NextAvailableSlot: e.resetAt,
			})
			report.TotalRules++
			if e.violated {
				report.ViolatedRules++
			}
		}
		report.Scopes = append(report.Scopes, t)
	}

	report.HealthScore = 100
	if report.TotalRules > 0 {
		healthy := report.TotalRules - report.ViolatedRules
		report.HealthScore = int(math.Round(float64(healthy) / float64(report.TotalRules) * 100))
	}
	return report
}
