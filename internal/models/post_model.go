package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type ScheduledPost struct {
	ID              string     `db:"id" json:"id"`
	SocialAccountID string     `db:"social_account_id" json:"social_account_id"`
	Platform        string     `db:"platform" json:"platform"`
	Caption         string     `db:"caption" json:"caption"`
	Hashtags        []string   `db:"hashtags" json:"hashtags"`
	AssetIDs        []string   `db:"asset_ids" json:"asset_ids"`
	ScheduledTime   time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Timezone        string     `db:"timezone" json:"timezone"`
	Status          string     `db:"status" json:"status"` // scheduled, posting, posted, failed
	Priority        int        `db:"priority" json:"priority"`
	RetryCount      int        `db:"retry_count" json:"retry_count"`
	LastRetryAt     *time.Time `db:"last_retry_at" json:"last_retry_at,omitempty"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	PlatformPostID  string     `db:"platform_post_id" json:"platform_post_id,omitempty"`
	PlatformURL     string     `db:"platform_url" json:"platform_url,omitempty"`
	PublishedAt     *time.Time `db:"published_at" json:"published_at,omitempty"`
	IPPoolID        string     `db:"ip_pool_id" json:"ip_pool_id,omitempty"`
	IPSnapshot      string     `db:"ip_snapshot" json:"ip_snapshot,omitempty"`
	BatchID         string     `db:"batch_id" json:"batch_id,omitempty"`
	Analytics       Analytics  `db:"analytics" json:"analytics,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTwitter   = "twitter"
	PlatformTiktok    = "tiktok"
)

const DefaultPostPriority = 5

// Analytics is the free-form metadata bag stored with a post.
type Analytics map[string]any

const (
	AnalyticsOrchestratorManaged = "orchestratorManaged"
	AnalyticsOrchestrationPlan   = "orchestrationPlan"
	AnalyticsAssignedWorker      = "assignedWorker"
	AnalyticsJitterApplied       = "jitterApplied"
	AnalyticsContentLibraryID    = "contentLibraryId"
	AnalyticsSatelliteTemplate   = "satelliteTemplate"
	AnalyticsSmartGenerated      = "smartGenerated"
	AnalyticsPriority            = "priority"
	AnalyticsTagIDs              = "tagIds"
	AnalyticsLastError           = "lastError"
)

func (a Analytics) OrchestratorManaged() bool {
	switch v := a[AnalyticsOrchestratorManaged].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	case float64:
		return v != 0
	}
	return false
}

func (a Analytics) CampaignID() string       { return a.str(AnalyticsOrchestrationPlan) }
func (a Analytics) AssignedWorker() string   { return a.str(AnalyticsAssignedWorker) }
func (a Analytics) ContentLibraryID() string { return a.str(AnalyticsContentLibraryID) }

func (a Analytics) str(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Clone returns a shallow copy so callers can add keys without mutating the post.
func (a Analytics) Clone() Analytics {
	out := make(Analytics, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Analytics) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Analytics) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = Analytics{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("analytics: unsupported scan type")
	}
	out := Analytics{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

// PublishResult is stamped on a post when the platform accepted it.
type PublishResult struct {
	PlatformPostID string
	PlatformURL    string
	IPSnapshot     string
	PublishedAt    time.Time
}

// PostFailure describes the state a post moves to after a failed attempt.
type PostFailure struct {
	Status        string
	RetryCount    int
	ErrorMessage  string
	ScheduledTime time.Time
	LastRetryAt   time.Time
}

type MediaAsset struct {
	ID         string    `db:"id" json:"id"`
	FileName   string    `db:"file_name" json:"file_name"`
	FileType   string    `db:"file_type" json:"file_type"`
	ObjectKey  string    `db:"object_key" json:"object_key"`
	SecureURL  string    `db:"secure_url" json:"secure_url"`
	UsageCount int       `db:"usage_count" json:"usage_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
