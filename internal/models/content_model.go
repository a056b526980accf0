package models

import "time"

type ContentItem struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	BaseContent string     `db:"base_content" json:"base_content"`
	ContentType string     `db:"content_type" json:"content_type"`
	Hashtags    []string   `db:"hashtags" json:"hashtags"`
	AssetIDs    []string   `db:"asset_ids" json:"asset_ids"`
	TagIDs      []string   `db:"tag_ids" json:"tag_ids"`
	Platforms   []string   `db:"platforms" json:"platforms"`
	Priority    string     `db:"priority" json:"priority"` // high, normal, low
	UsageCount  int        `db:"usage_count" json:"usage_count"`
	LastUsed    *time.Time `db:"last_used" json:"last_used,omitempty"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

const (
	ContentStatusActive = "active"

	ContentPriorityHigh   = "high"
	ContentPriorityNormal = "normal"
	ContentPriorityLow    = "low"
)

// SupportsPlatform reports whether the item may be posted to platform.
// Items without a platform list are universal.
func (c *ContentItem) SupportsPlatform(platform string) bool {
	if len(c.Platforms) == 0 {
		return true
	}
	for _, p := range c.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

func PriorityRank(priority string) int {
	switch priority {
	case ContentPriorityHigh:
		return 3
	case ContentPriorityLow:
		return 1
	default:
		return 2
	}
}

type ContentFilter struct {
	Status      string
	ContentType string
	TagIDs      []string
	Priority    string
	Platform    string
	UnusedSince *time.Time
	IDs         []string
	Limit       int
}

type ContentAnalytics struct {
	TotalContent  int            `json:"total_content"`
	ActiveContent int            `json:"active_content"`
	TotalUsage    int            `json:"total_usage"`
	ByPriority    map[string]int `json:"by_priority"`
	TopUsed       []*ContentItem `json:"top_used"`
	NeverUsed     int            `json:"never_used"`
}
