package service

import (
	"context"
	"errors"
	"testing"
	"time"

	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type publishFixture struct {
	store    *memory.Store
	adapter  *MockPlatformAdapter
	tracker  *MockCampaignTracker
	svc      *publishService
	accounts []*models.SocialAccount
}

func newPublishFixture(t *testing.T, withPools bool) *publishFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := memory.NewStore()

	adapter := NewMockPlatformAdapter(ctrl)
	adapter.EXPECT().Platform().Return(models.PlatformFacebook).AnyTimes()
	tracker := NewMockCampaignTracker(ctrl)

	deps := PublishDeps{
		Posts:     store.Posts(),
		Accounts:  store.Accounts(),
		Content:   store.Content(),
		Limits:    newTestLimitService(store),
		Assets:    NewAssetService(config.R2{PublicURL: "https://cdn.example.com"}, store.Assets(), zap.NewNop()),
		Adapters:  NewPlatformAdapters(adapter),
		Campaigns: tracker,
	}
	if withPools {
		deps.Assignment = newTestAssignmentService(store)
	}

	svc := NewPublishService(config.Scheduler{MaxRetries: 3, BackoffCap: time.Hour}, deps, zap.NewNop()).(*publishService)
	svc.now = func() time.Time { return limitNow }

	acc := store.AddAccount(&models.SocialAccount{
		ID:        "acc-1",
		Platform:  models.PlatformFacebook,
		IsActive:  true,
		Connected: true,
		PageAccessTokens: models.PageTokens{
			{PageID: "page-old", AccessToken: "stale", Status: "expired"},
			{PageID: "page-1", AccessToken: "token-1", Status: models.PageTokenStatusActive},
		},
	})
	return &publishFixture{store: store, adapter: adapter, tracker: tracker, svc: svc, accounts: []*models.SocialAccount{acc}}
}

func (f *publishFixture) duePost(id string, retries int) *models.ScheduledPost {
	return f.store.AddPost(&models.ScheduledPost{
		ID:              id,
		SocialAccountID: "acc-1",
		Platform:        models.PlatformFacebook,
		Caption:         "Fresh drop",
		Hashtags:        []string{"sale", "#summer"},
		Status:          models.PostStatusScheduled,
		ScheduledTime:   limitNow.Add(-time.Minute),
		RetryCount:      retries,
		Priority:        models.DefaultPostPriority,
	})
}

func TestProcessPost_Success(t *testing.T) {
	f := newPublishFixture(t, false)
	f.store.AddAsset(&models.MediaAsset{ID: "img-1", ObjectKey: "uploads/a.jpg"})
	f.store.AddContent(&models.ContentItem{ID: "c-1", Status: models.ContentStatusActive})

	post := f.duePost("post-1", 0)
	post.AssetIDs = []string{"img-1"}
	post.Analytics = models.Analytics{models.AnalyticsContentLibraryID: "c-1"}
	f.store.AddPost(post)

	f.adapter.EXPECT().
		PostToPage(gomock.Any(), "page-1", "token-1", PostContent{
			Message:   "Fresh drop\n\n#sale #summer",
			ImageURLs: []string{"https://cdn.example.com/uploads/a.jpg"},
		}).
		Return(&PlatformPostResult{PostID: "fb_123", PostURL: "https://www.facebook.com/fb_123"}, nil)

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, models.PostStatusPosted, got.Status)
	assert.Equal(t, "fb_123", got.PlatformPostID)
	assert.Equal(t, "https://www.facebook.com/fb_123", got.PlatformURL)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, limitNow, *got.PublishedAt)

	assert.Equal(t, 1, f.store.Asset("img-1").UsageCount)
	assert.Equal(t, 1, f.store.ContentItem("c-1").UsageCount)
	require.NotNil(t, f.store.Account("acc-1").LastPost)
	assert.Equal(t, limitNow, *f.store.Account("acc-1").LastPost)
}

func TestProcessPost_SuccessRecordsPoolAndSession(t *testing.T) {
	f := newPublishFixture(t, true)
	f.store.AddPool(activePool("p1", 90))
	post := f.duePost("post-1", 0)

	f.adapter.EXPECT().PostToPage(gomock.Any(), "page-1", "token-1", gomock.Any()).
		Return(&PlatformPostResult{PostID: "fb_1"}, nil)

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, "p1", got.IPPoolID)
	assert.Equal(t, "10.0.0.p1", got.IPSnapshot)
}

func TestProcessPost_TransientFailureSchedulesRetry(t *testing.T) {
	f := newPublishFixture(t, false)
	post := f.duePost("post-1", 0)

	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("graph timeout"))

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "graph timeout", got.ErrorMessage)
	assert.Equal(t, limitNow.Add(2*time.Minute), got.ScheduledTime)
	require.NotNil(t, got.LastRetryAt)
	assert.Equal(t, limitNow, *got.LastRetryAt)
}

func TestProcessPost_FailureRunsAutoRotationWithoutPool(t *testing.T) {
	f := newPublishFixture(t, false)
	stale := time.Now().Add(-3 * time.Hour)
	f.store.AddPool(&models.IpPool{ID: "old", Name: "b", Type: models.PoolTypeProxyAPI, IsEnabled: true,
		Status: models.PoolStatusActive, LastRotatedAt: &stale, HealthScore: intPtr(90)})
	fake := &fakeStrategy{ips: []string{"9.9.9.9"}}
	f.svc.Rotation = newTestRotationService(t, f.store, &RotationStrategies{ProxyAPI: fake})
	post := f.duePost("post-1", 0)

	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("graph timeout"))

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
	assert.Empty(t, f.store.Post("post-1").IPPoolID)
	assert.Equal(t, 1, fake.calls)
}

func TestProcessPost_LastRetryEndsInFailed(t *testing.T) {
	f := newPublishFixture(t, false)
	post := f.duePost("post-1", 2)
	originalTime := post.ScheduledTime

	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("graph timeout"))

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, "graph timeout", got.ErrorMessage)
	assert.Equal(t, originalTime, got.ScheduledTime)

	// exhausted posts are never picked up again
	due, err := f.store.Posts().ListDue(context.Background(), limitNow.Add(24*time.Hour), 3)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestProcessPost_PermanentErrorSkipsRetries(t *testing.T) {
	f := newPublishFixture(t, false)
	post := f.duePost("post-1", 0)

	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, permanent(errors.New("token expired")))

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
}

func TestProcessPost_UnsupportedPlatform(t *testing.T) {
	f := newPublishFixture(t, false)
	f.store.AddAccount(&models.SocialAccount{ID: "tw-1", Platform: models.PlatformTwitter, IsActive: true, Connected: true})
	post := f.store.AddPost(&models.ScheduledPost{
		ID:              "post-tw",
		SocialAccountID: "tw-1",
		Platform:        models.PlatformTwitter,
		Status:          models.PostStatusScheduled,
		ScheduledTime:   limitNow.Add(-time.Minute),
	})

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	got := f.store.Post("post-tw")
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "not implemented")
}

func TestProcessPost_MissingAccountFails(t *testing.T) {
	f := newPublishFixture(t, false)
	post := f.store.AddPost(&models.ScheduledPost{
		ID:              "orphan",
		SocialAccountID: "ghost",
		Platform:        models.PlatformFacebook,
		Status:          models.PostStatusScheduled,
		ScheduledTime:   limitNow.Add(-time.Minute),
	})

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.PostStatusFailed, f.store.Post("orphan").Status)
}

func TestProcessPost_NoActiveTokenFails(t *testing.T) {
	f := newPublishFixture(t, false)
	f.store.AddAccount(&models.SocialAccount{ID: "acc-1", Platform: models.PlatformFacebook, IsActive: true, Connected: true})
	post := f.duePost("post-1", 0)

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, f.store.Post("post-1").ErrorMessage, "no active page token")
}

func TestProcessPost_RateLimitDefersWithoutRetry(t *testing.T) {
	f := newPublishFixture(t, false)
	addPosted(f.store, "acc-1", 5, limitNow.Add(-10*time.Minute))
	post := f.duePost("post-1", 1)

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)

	got := f.store.Post("post-1")
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, limitNow.Add(50*time.Minute), got.ScheduledTime)
	assert.Contains(t, got.ErrorMessage, "Rate limit reached")
}

func TestProcessPost_AlreadyClaimedIsSkipped(t *testing.T) {
	f := newPublishFixture(t, false)
	post := f.duePost("post-1", 0)
	claimed, err := f.store.Posts().Claim(context.Background(), "post-1")
	require.NoError(t, err)
	require.True(t, claimed)

	outcome, err := f.svc.ProcessPost(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, models.PostStatusPosting, f.store.Post("post-1").Status)
}

func campaignPost(f *publishFixture, id, campaignID string) *models.ScheduledPost {
	post := f.duePost(id, 0)
	post.Analytics = models.Analytics{
		models.AnalyticsOrchestratorManaged: true,
		models.AnalyticsOrchestrationPlan:   campaignID,
	}
	return f.store.AddPost(post)
}

func TestProcessPost_CampaignGating(t *testing.T) {
	t.Run("paused campaign leaves post scheduled", func(t *testing.T) {
		f := newPublishFixture(t, false)
		post := campaignPost(f, "post-1", "campaign_1")
		f.tracker.EXPECT().CampaignStatus(gomock.Any(), "campaign_1").Return(models.CampaignPaused, true)

		outcome, err := f.svc.ProcessPost(context.Background(), post)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, outcome)
		assert.Equal(t, models.PostStatusScheduled, f.store.Post("post-1").Status)
	})

	t.Run("cancelled campaign fails the post", func(t *testing.T) {
		f := newPublishFixture(t, false)
		post := campaignPost(f, "post-1", "campaign_1")
		f.tracker.EXPECT().CampaignStatus(gomock.Any(), "campaign_1").Return(models.CampaignFailed, true)
		f.tracker.EXPECT().RecordJobResult(gomock.Any(), "campaign_1", false).Return(nil)

		outcome, err := f.svc.ProcessPost(context.Background(), post)
		require.NoError(t, err)
		assert.Equal(t, OutcomeFailed, outcome)

		got := f.store.Post("post-1")
		assert.Equal(t, models.PostStatusFailed, got.Status)
		assert.Equal(t, campaignCancelledMsg, got.ErrorMessage)
	})

	t.Run("running campaign records success", func(t *testing.T) {
		f := newPublishFixture(t, false)
		post := campaignPost(f, "post-1", "campaign_1")
		f.tracker.EXPECT().CampaignStatus(gomock.Any(), "campaign_1").Return(models.CampaignRunning, true)
		f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&PlatformPostResult{PostID: "fb_9"}, nil)
		f.tracker.EXPECT().RecordJobResult(gomock.Any(), "campaign_1", true).Return(nil)

		outcome, err := f.svc.ProcessPost(context.Background(), post)
		require.NoError(t, err)
		assert.Equal(t, OutcomePosted, outcome)
	})

	t.Run("retryable failure is not reported", func(t *testing.T) {
		f := newPublishFixture(t, false)
		post := campaignPost(f, "post-1", "campaign_1")
		f.tracker.EXPECT().CampaignStatus(gomock.Any(), "campaign_1").Return(models.CampaignRunning, true)
		f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("flaky"))

		outcome, err := f.svc.ProcessPost(context.Background(), post)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetry, outcome)
	})
}

func TestProcessDuePosts_IsolatesFailures(t *testing.T) {
	f := newPublishFixture(t, false)
	f.duePost("a", 0)
	f.duePost("b", 0)
	f.duePost("c", 0)
	f.store.AddPost(&models.ScheduledPost{
		ID:              "future",
		SocialAccountID: "acc-1",
		Platform:        models.PlatformFacebook,
		Status:          models.PostStatusScheduled,
		ScheduledTime:   limitNow.Add(time.Hour),
	})

	calls := 0
	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, pageID, token string, content PostContent) (*PlatformPostResult, error) {
			calls++
			switch calls {
			case 1:
				panic("adapter exploded")
			case 2:
				return nil, errors.New("graph timeout")
			}
			return &PlatformPostResult{PostID: "fb_ok"}, nil
		}).Times(3)

	summary, err := f.svc.ProcessDuePosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Due)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, summary.Posted)
	assert.Equal(t, models.PostStatusScheduled, f.store.Post("future").Status)
}

func TestProcessDuePosts_OrchestratedFirst(t *testing.T) {
	f := newPublishFixture(t, false)
	f.duePost("plain", 0)
	campaignPost(f, "managed", "campaign_1")
	f.tracker.EXPECT().CampaignStatus(gomock.Any(), "campaign_1").Return(models.CampaignRunning, true)
	f.tracker.EXPECT().RecordJobResult(gomock.Any(), "campaign_1", true).Return(nil)

	var order []string
	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, pageID, token string, content PostContent) (*PlatformPostResult, error) {
			order = append(order, content.Message)
			return &PlatformPostResult{PostID: "fb"}, nil
		}).Times(2)

	summary, err := f.svc.ProcessDuePosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Posted)
	assert.Equal(t, models.PostStatusPosted, f.store.Post("managed").Status)
	assert.Equal(t, models.PostStatusPosted, f.store.Post("plain").Status)
	assert.Len(t, order, 2)
}

func TestTriggerPost(t *testing.T) {
	f := newPublishFixture(t, false)

	_, err := f.svc.TriggerPost(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)

	f.store.AddPost(&models.ScheduledPost{ID: "done", Status: models.PostStatusPosted})
	outcome, err := f.svc.TriggerPost(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	post := f.duePost("later", 0)
	post.ScheduledTime = limitNow.Add(3 * time.Hour)
	f.store.AddPost(post)
	f.adapter.EXPECT().PostToPage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&PlatformPostResult{PostID: "fb_now"}, nil)

	outcome, err = f.svc.TriggerPost(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)
}

func TestUpcomingPosts(t *testing.T) {
	f := newPublishFixture(t, false)
	for i, d := range []time.Duration{3 * time.Hour, time.Hour, -time.Hour, 2 * time.Hour} {
		f.store.AddPost(&models.ScheduledPost{
			ID:            string(rune('a' + i)),
			Status:        models.PostStatusScheduled,
			ScheduledTime: limitNow.Add(d),
		})
	}

	got, err := f.svc.UpcomingPosts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
}
