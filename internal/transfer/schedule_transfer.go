package transfer

import (
	"errors"
	"time"
)

type SmartScheduleRequest struct {
	TargetTime             *time.Time `json:"target_time,omitempty"`
	Platforms              []string   `json:"platforms"`
	TagIDs                 []string   `json:"tag_ids,omitempty"`
	Priority               string     `json:"priority,omitempty"`
	AccountSelection       string     `json:"account_selection,omitempty"`
	MaxAccountsPerPlatform int        `json:"max_accounts_per_platform,omitempty"`
	IncludeRecentlyUsed    bool       `json:"include_recently_used,omitempty"`
}

func (r SmartScheduleRequest) Validate() error {
	if len(r.Platforms) == 0 {
		return errors.New("platforms must not be empty")
	}
	switch r.AccountSelection {
	case "", "all", "random", "round_robin":
	default:
		return errors.New("account_selection must be all, random or round_robin")
	}
	switch r.Priority {
	case "", "high", "normal", "low":
	default:
		return errors.New("priority must be high, normal or low")
	}
	return nil
}

type BatchScheduleRequest struct {
	SmartScheduleRequest
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	IntervalHours float64   `json:"interval_hours"`
}

func (r BatchScheduleRequest) Validate() error {
	if err := r.SmartScheduleRequest.Validate(); err != nil {
		return err
	}
	if r.IntervalHours <= 0 {
		return errors.New("interval_hours must be positive")
	}
	if !r.EndTime.After(r.StartTime) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

type ScheduleResponse struct {
	Count int `json:"count"`
	Posts any `json:"posts"`
}
