package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maheshrc27/postdispatch/internal/cache"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var limitNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func newTestLimitService(store *memory.Store) *limitService {
	s := NewLimitService(store.Posts(), store.Groups(), store.Accounts(),
		cache.NewMemoryUsageCache(time.Minute), nil, time.UTC, zap.NewNop()).(*limitService)
	s.now = func() time.Time { return limitNow }
	return s
}

func addPosted(store *memory.Store, accountID string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		store.AddPost(&models.ScheduledPost{
			ID:              fmt.Sprintf("%s-posted-%d-%d", accountID, at.Unix(), i),
			SocialAccountID: accountID,
			Platform:        models.PlatformFacebook,
			Status:          models.PostStatusPosted,
			ScheduledTime:   at,
		})
	}
}

func TestCheckPostingCapacity_AccountHourlyBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("at the limit", func(t *testing.T) {
		store := memory.NewStore()
		store.AddAccount(&models.SocialAccount{ID: "acc-1", IsActive: true, Connected: true})
		addPosted(store, "acc-1", 5, limitNow.Add(-10*time.Minute))

		capacity := newTestLimitService(store).CheckPostingCapacity(ctx, "acc-1", "", "")
		assert.False(t, capacity.CanPost)
		require.Len(t, capacity.Violations, 1)
		v := capacity.Violations[0]
		assert.Equal(t, models.ScopeAccount, v.Scope)
		assert.Equal(t, models.LimitPostsPerHour, v.Rule.LimitType)
		assert.Equal(t, 5, v.CurrentUsage)
		assert.Equal(t, 5, v.MaxAllowed)
		assert.Equal(t, limitNow.Add(50*time.Minute), v.NextAvailableSlot)
		assert.Equal(t, 50, v.SuggestedDelay)
	})

	t.Run("one below the limit", func(t *testing.T) {
		store := memory.NewStore()
		store.AddAccount(&models.SocialAccount{ID: "acc-1", IsActive: true, Connected: true})
		addPosted(store, "acc-1", 4, limitNow.Add(-10*time.Minute))

		capacity := newTestLimitService(store).CheckPostingCapacity(ctx, "acc-1", "", "")
		assert.True(t, capacity.CanPost)
		assert.Equal(t, 1, capacity.MaxPosts)
		assert.Empty(t, capacity.Violations)
		assert.Equal(t, limitNow.Add(50*time.Minute), capacity.WindowResetAt)
	})
}

func addPending(store *memory.Store, accountID, status string, n int, at time.Time) {
	for i := 0; i < n; i++ {
		store.AddPost(&models.ScheduledPost{
			ID:              fmt.Sprintf("%s-%s-%d", accountID, status, i),
			SocialAccountID: accountID,
			Platform:        models.PlatformFacebook,
			Status:          status,
			ScheduledTime:   at,
		})
	}
}

func TestCheckPostingCapacity_CountsEveryPostInWindow(t *testing.T) {
	store := memory.NewStore()
	addPending(store, "acc-1", models.PostStatusScheduled, 3, limitNow.Add(-10*time.Minute))
	addPending(store, "acc-1", models.PostStatusPosting, 1, limitNow.Add(-5*time.Minute))
	addPosted(store, "acc-1", 1, limitNow.Add(-20*time.Minute))

	capacity := newTestLimitService(store).CheckPostingCapacity(context.Background(), "acc-1", "", "")
	assert.False(t, capacity.CanPost)
	require.Len(t, capacity.Violations, 1)
	assert.Equal(t, 5, capacity.Violations[0].CurrentUsage)
	assert.Equal(t, limitNow.Add(40*time.Minute), capacity.Violations[0].NextAvailableSlot)
}

func TestCheckPostingCapacity_IgnoresPostsOutsideWindowAndFailed(t *testing.T) {
	store := memory.NewStore()
	addPosted(store, "acc-1", 5, limitNow.Add(-2*time.Hour))
	addPending(store, "acc-1", models.PostStatusFailed, 5, limitNow.Add(-time.Minute))
	addPending(store, "acc-1", models.PostStatusScheduled, 5, limitNow.Add(time.Minute))

	capacity := newTestLimitService(store).CheckPostingCapacity(context.Background(), "acc-1", "", "")
	assert.True(t, capacity.CanPost)
	assert.Equal(t, 5, capacity.MaxPosts)
}

func TestCheckPostCapacity_LeavesPostOutOfItsOwnCount(t *testing.T) {
	store := memory.NewStore()
	addPending(store, "acc-1", models.PostStatusScheduled, 5, limitNow.Add(-time.Minute))
	s := newTestLimitService(store)
	ctx := context.Background()

	capacity := s.CheckPostCapacity(ctx, "acc-1-scheduled-0", "acc-1", "", "")
	assert.True(t, capacity.CanPost)
	assert.Equal(t, 1, capacity.MaxPosts)

	capacity = s.CheckPostingCapacity(ctx, "acc-1", "", "")
	assert.False(t, capacity.CanPost)

	// The exclusion never lands in the shared cache.
	capacity = s.CheckPostCapacity(ctx, "acc-1-scheduled-1", "acc-1", "", "")
	assert.True(t, capacity.CanPost)
}

func TestCheckPostingCapacity_StopsAtFirstViolatedScope(t *testing.T) {
	store := memory.NewStore()
	store.AddAccount(&models.SocialAccount{ID: "acc-1", FacebookAppID: "app-1", GroupID: "grp-1"})
	addPosted(store, "acc-1", 5, limitNow.Add(-5*time.Minute))

	s := newTestLimitService(store)
	require.NoError(t, s.ImportRules([]models.LimitRule{
		{Scope: models.ScopeApp, LimitType: models.LimitPostsPerHour, MaxCount: 3, TimeWindowHours: 1, Priority: 1, IsActive: true},
		{Scope: models.ScopeApp, LimitType: models.LimitPostsPerDay, MaxCount: 4, TimeWindowHours: 24, Priority: 2, IsActive: true},
		{Scope: models.ScopeAccount, LimitType: models.LimitPostsPerHour, MaxCount: 5, TimeWindowHours: 1, Priority: 5, IsActive: true},
	}))

	capacity := s.CheckPostingCapacity(context.Background(), "acc-1", "grp-1", "app-1")
	assert.False(t, capacity.CanPost)
	require.Len(t, capacity.Violations, 2)
	for _, v := range capacity.Violations {
		assert.Equal(t, models.ScopeApp, v.Scope)
		assert.Equal(t, "app-1", v.ScopeID)
	}
}

func TestCheckPostingCapacity_GroupUsageFollowsMembership(t *testing.T) {
	store := memory.NewStore()
	store.AddGroup(&models.AccountGroup{ID: "grp-1", Name: "Shops", Weight: 1, IsActive: true})
	store.AddAccount(&models.SocialAccount{ID: "acc-1", GroupID: "grp-1"})
	store.AddAccount(&models.SocialAccount{ID: "acc-2", GroupID: "grp-1"})
	store.AddAccount(&models.SocialAccount{ID: "acc-3"})
	addPosted(store, "acc-1", 2, limitNow.Add(-5*time.Minute))
	addPosted(store, "acc-2", 1, limitNow.Add(-5*time.Minute))
	addPosted(store, "acc-3", 4, limitNow.Add(-5*time.Minute))

	s := newTestLimitService(store)
	require.NoError(t, s.ImportRules([]models.LimitRule{
		{Scope: models.ScopeGroup, LimitType: models.LimitPostsPerHour, MaxCount: 3, TimeWindowHours: 1, Priority: 3, IsActive: true},
	}))

	capacity := s.CheckPostingCapacity(context.Background(), "acc-2", "grp-1", "")
	assert.False(t, capacity.CanPost)
	require.Len(t, capacity.Violations, 1)
	assert.Equal(t, 3, capacity.Violations[0].CurrentUsage)
}

func TestRulesFor_GroupWeightAndOverride(t *testing.T) {
	store := memory.NewStore()
	store.AddGroup(&models.AccountGroup{ID: "half", Weight: 0.5, IsActive: true})
	store.AddGroup(&models.AccountGroup{ID: "vip", Weight: 2, IsActive: true})
	s := newTestLimitService(store)
	ctx := context.Background()

	rules := s.rulesFor(ctx, models.ScopeGroup, "half")
	require.Len(t, rules, 2)
	assert.Equal(t, 25, rules[0].MaxCount)
	assert.Equal(t, 250, rules[1].MaxCount)

	require.NoError(t, s.ImportRules(append(DefaultLimitRules(), models.LimitRule{
		ID: "vip-hourly", Scope: models.ScopeGroup, ScopeID: "vip", LimitType: models.LimitPostsPerHour,
		MaxCount: 7, TimeWindowHours: 1, Priority: 3, IsActive: true,
	})))
	rules = s.rulesFor(ctx, models.ScopeGroup, "vip")
	require.Len(t, rules, 2)
	byType := map[string]int{}
	for _, r := range rules {
		byType[r.LimitType] = r.MaxCount
	}
	assert.Equal(t, 7, byType[models.LimitPostsPerHour])
	assert.Equal(t, 1000, byType[models.LimitPostsPerDay])

	rules = s.rulesFor(ctx, models.ScopeGroup, "missing")
	assert.Equal(t, 50, rules[0].MaxCount)
}

func TestCheckPostingCapacity_FailsOpenOnStorageError(t *testing.T) {
	store := memory.NewStore()
	addPosted(store, "acc-1", 10, limitNow.Add(-time.Minute))
	store.FailUsageQueries(errors.New("connection reset"))

	capacity := newTestLimitService(store).CheckPostingCapacity(context.Background(), "acc-1", "", "")
	assert.True(t, capacity.CanPost)
	assert.Equal(t, 5, capacity.MaxPosts)
}

func TestCheckPostingCapacity_SuggestedTimes(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed suggests future engagement hours", func(t *testing.T) {
		store := memory.NewStore()
		capacity := newTestLimitService(store).CheckPostingCapacity(ctx, "acc-1", "", "")
		require.True(t, capacity.CanPost)
		require.NotEmpty(t, capacity.SuggestedScheduleTimes)
		assert.LessOrEqual(t, len(capacity.SuggestedScheduleTimes), 5)
		for _, ts := range capacity.SuggestedScheduleTimes {
			assert.True(t, ts.After(limitNow))
			assert.Contains(t, optimalHours, ts.Hour())
			assert.Zero(t, ts.Minute())
		}
	})

	t.Run("blocked suggests hourly recovery slots", func(t *testing.T) {
		store := memory.NewStore()
		addPosted(store, "acc-1", 5, limitNow.Add(-20*time.Minute))
		capacity := newTestLimitService(store).CheckPostingCapacity(ctx, "acc-1", "", "")
		require.False(t, capacity.CanPost)
		require.Len(t, capacity.SuggestedScheduleTimes, 5)
		anchor := limitNow.Add(40 * time.Minute)
		for i, ts := range capacity.SuggestedScheduleTimes {
			assert.Equal(t, anchor.Add(time.Duration(i)*time.Hour), ts)
		}
	})
}

func TestCheckBulkPostingCapacity_GreedyAdmission(t *testing.T) {
	store := memory.NewStore()
	s := newTestLimitService(store)
	require.NoError(t, s.ImportRules([]models.LimitRule{
		{Scope: models.ScopeAccount, LimitType: models.LimitPostsPerHour, MaxCount: 3, TimeWindowHours: 1, Priority: 5, IsActive: true},
	}))

	var posts []models.BulkPostRequest
	for i := 0; i < 5; i++ {
		posts = append(posts, models.BulkPostRequest{
			PostID:        fmt.Sprintf("p%d", i),
			AccountID:     "acc-1",
			ScheduledTime: limitNow.Add(time.Duration(i) * time.Minute),
		})
	}

	res := s.CheckBulkPostingCapacity(context.Background(), posts)
	assert.False(t, res.CanScheduleAll)
	require.Len(t, res.AllowedPosts, 3)
	require.Len(t, res.BlockedPosts, 2)
	require.Len(t, res.SuggestedAlternatives, 2)

	for i, p := range res.AllowedPosts {
		assert.Equal(t, fmt.Sprintf("p%d", i), p.PostID)
	}
	reset := limitNow.Add(time.Hour)
	for i, b := range res.BlockedPosts {
		assert.Equal(t, fmt.Sprintf("p%d", i+3), b.Post.PostID)
		assert.Equal(t, "Capacity exceeded", b.Reason)
		assert.False(t, res.SuggestedAlternatives[i].SuggestedTime.Before(reset))
	}
}

func TestCheckBulkPostingCapacity_ViolatedScope(t *testing.T) {
	store := memory.NewStore()
	addPosted(store, "acc-1", 5, limitNow.Add(-30*time.Minute))

	res := newTestLimitService(store).CheckBulkPostingCapacity(context.Background(), []models.BulkPostRequest{
		{PostID: "a", AccountID: "acc-1"},
		{PostID: "b", AccountID: "acc-2"},
	})
	require.Len(t, res.BlockedPosts, 1)
	assert.Equal(t, "Limit violated: account", res.BlockedPosts[0].Reason)
	assert.Equal(t, limitNow.Add(30*time.Minute), res.SuggestedAlternatives[0].SuggestedTime)
	require.Len(t, res.AllowedPosts, 1)
	assert.Equal(t, "b", res.AllowedPosts[0].PostID)
}

func TestGetLimitStatus(t *testing.T) {
	store := memory.NewStore()
	store.AddGroup(&models.AccountGroup{ID: "grp-1", Name: "Shops", Weight: 1, IsActive: true})
	store.AddAccount(&models.SocialAccount{ID: "acc-1", AccountName: "Main", GroupID: "grp-1", FacebookAppID: "app-1"})
	store.AddAccount(&models.SocialAccount{ID: "acc-2", AccountName: "Second", FacebookAppID: "app-1"})
	addPosted(store, "acc-1", 5, limitNow.Add(-10*time.Minute))

	s := newTestLimitService(store)
	ctx := context.Background()

	report := s.GetLimitStatus(ctx, LimitStatusFilter{})
	// app-1, grp-1, acc-1, acc-2, two rules each
	assert.Len(t, report.Scopes, 4)
	assert.Equal(t, 8, report.TotalRules)
	assert.Equal(t, 1, report.ViolatedRules)
	assert.Equal(t, 88, report.HealthScore)

	accountOnly := s.GetLimitStatus(ctx, LimitStatusFilter{Scope: models.ScopeAccount, ScopeID: "acc-1"})
	require.Len(t, accountOnly.Scopes, 1)
	assert.Equal(t, "Main", accountOnly.Scopes[0].Name)
	assert.Equal(t, 50, accountOnly.HealthScore)
}

func TestImportRulesValidates(t *testing.T) {
	s := newTestLimitService(memory.NewStore())

	err := s.ImportRules([]models.LimitRule{{Scope: "tenant", TimeWindowHours: 1}})
	assert.Error(t, err)
	err = s.ImportRules([]models.LimitRule{{Scope: models.ScopeApp, TimeWindowHours: 0}})
	assert.Error(t, err)
	assert.Len(t, s.Rules(), 6)

	require.NoError(t, s.ImportRules([]models.LimitRule{{Scope: models.ScopeApp, MaxCount: 1, TimeWindowHours: 1, IsActive: true}}))
	rules := s.Rules()
	require.Len(t, rules, 1)
	assert.NotEmpty(t, rules[0].ID)
}
