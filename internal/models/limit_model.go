package models

import "time"

type LimitRule struct {
	ID              string `json:"id"`
	Scope           string `json:"scope"`              // app, group, account
	ScopeID         string `json:"scope_id,omitempty"` // empty applies to every id of the scope
	LimitType       string `json:"limit_type"`
	MaxCount        int    `json:"max_count"`
	TimeWindowHours int    `json:"time_window_hours"`
	Priority        int    `json:"priority"`
	IsActive        bool   `json:"is_active"`
}

const (
	ScopeApp     = "app"
	ScopeGroup   = "group"
	ScopeAccount = "account"

	LimitPostsPerHour  = "posts_per_hour"
	LimitPostsPerDay   = "posts_per_day"
	LimitPostsPerWeek  = "posts_per_week"
	LimitPostsPerMonth = "posts_per_month"
)

func (r LimitRule) Window() time.Duration {
	return time.Duration(r.TimeWindowHours) * time.Hour
}

// UsageQuery selects the non-failed posts counted against a scope whose
// scheduled time is inside [Start, End]. ExcludePostID, when set, is left
// out of the count.
type UsageQuery struct {
	Scope         string
	ScopeID       string
	Start         time.Time
	End           time.Time
	ExcludePostID string
}

type WindowUsage struct {
	Count  int        `json:"count"`
	Oldest *time.Time `json:"oldest,omitempty"`
}

type LimitViolation struct {
	Scope             string    `json:"scope"`
	ScopeID           string    `json:"scope_id"`
	Rule              LimitRule `json:"rule"`
	CurrentUsage      int       `json:"current_usage"`
	MaxAllowed        int       `json:"max_allowed"`
	SuggestedDelay    int       `json:"suggested_delay_minutes"`
	NextAvailableSlot time.Time `json:"next_available_slot"`
}

type PostingCapacity struct {
	CanPost                bool             `json:"can_post"`
	MaxPosts               int              `json:"max_posts"`
	WindowResetAt          time.Time        `json:"window_reset_at"`
	Violations             []LimitViolation `json:"violations"`
	SuggestedScheduleTimes []time.Time      `json:"suggested_schedule_times"`
}

type BulkPostRequest struct {
	PostID        string    `json:"post_id,omitempty"`
	AccountID     string    `json:"account_id"`
	GroupID       string    `json:"group_id,omitempty"`
	AppID         string    `json:"app_id,omitempty"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

type BlockedPost struct {
	Post   BulkPostRequest `json:"post"`
	Reason string          `json:"reason"`
}

type SuggestedAlternative struct {
	Post          BulkPostRequest `json:"post"`
	SuggestedTime time.Time       `json:"suggested_time"`
	Reason        string          `json:"reason"`
}

type BulkCapacityResult struct {
	CanScheduleAll        bool                   `json:"can_schedule_all"`
	AllowedPosts          []BulkPostRequest      `json:"allowed_posts"`
	BlockedPosts          []BlockedPost          `json:"blocked_posts"`
	SuggestedAlternatives []SuggestedAlternative `json:"suggested_alternatives"`
}

type RuleUsage struct {
	Rule              LimitRule `json:"rule"`
	CurrentUsage      int       `json:"current_usage"`
	MaxAllowed        int       `json:"max_allowed"`
	Remaining         int       `json:"remaining"`
	Violated          bool      `json:"violated"`
	NextAvailableSlot time.Time `json:"next_available_slot"`
}

type ScopeStatus struct {
	Scope   string      `json:"scope"`
	ScopeID string      `json:"scope_id"`
	Name    string      `json:"name,omitempty"`
	Rules   []RuleUsage `json:"rules"`
}

type LimitStatusReport struct {
	Scopes        []ScopeStatus `json:"scopes"`
	TotalRules    int           `json:"total_rules"`
	ViolatedRules int           `json:"violated_rules"`
	HealthScore   int           `json:"health_score"`
	GeneratedAt   time.Time     `json:"generated_at"`
}
