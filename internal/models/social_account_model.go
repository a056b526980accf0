package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type SocialAccount struct {
	ID               string     `db:"id" json:"id"`
	Platform         string     `db:"platform" json:"platform"`
	AccountName      string     `db:"account_name" json:"account_name"`
	AccountUsername  string     `db:"account_username" json:"account_username"`
	PageAccessTokens PageTokens `db:"page_access_tokens" json:"-"`
	FacebookAppID    string     `db:"facebook_app_id" json:"facebook_app_id,omitempty"`
	GroupID          string     `db:"group_id" json:"group_id,omitempty"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	Connected        bool       `db:"connected" json:"connected"`
	LastPost         *time.Time `db:"last_post" json:"last_post,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

const PageTokenStatusActive = "active"

type PageToken struct {
	PageID      string `json:"pageId"`
	PageName    string `json:"pageName"`
	AccessToken string `json:"accessToken"`
	Status      string `json:"status"`
}

type PageTokens []PageToken

// ActivePageToken returns the first token whose status is active.
func (a *SocialAccount) ActivePageToken() (PageToken, bool) {
	for _, t := range a.PageAccessTokens {
		if t.Status == PageTokenStatusActive && t.AccessToken != "" {
			return t, true
		}
	}
	return PageToken{}, false
}

// Usable reports whether the account can be picked for new posts.
func (a *SocialAccount) Usable() bool {
	return a.IsActive && a.Connected
}

func (t PageTokens) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

func (t *PageTokens) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("page tokens: unsupported scan type")
	}
	return json.Unmarshal(data, t)
}

type AccountGroup struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Weight    float64   `db:"weight" json:"weight"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
