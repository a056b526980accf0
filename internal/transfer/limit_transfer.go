package transfer

import (
	"errors"

	"github.com/maheshrc27/postdispatch/internal/models"
)

type CapacityCheckRequest struct {
	AccountID string `json:"account_id"`
	GroupID   string `json:"group_id,omitempty"`
	AppID     string `json:"app_id,omitempty"`
}

func (r CapacityCheckRequest) Validate() error {
	if r.AccountID == "" {
		return errors.New("account_id is required")
	}
	return nil
}

type BulkCapacityRequest struct {
	Posts []models.BulkPostRequest `json:"posts"`
}

func (r BulkCapacityRequest) Validate() error {
	if len(r.Posts) == 0 {
		return errors.New("posts must not be empty")
	}
	for _, p := range r.Posts {
		if p.AccountID == "" {
			return errors.New("every post needs an account_id")
		}
	}
	return nil
}

type UpdateRulesRequest struct {
	Rules []models.LimitRule `json:"rules"`
}
