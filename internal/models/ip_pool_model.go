package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"time"
)

type IpPool struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Type           string       `db:"type" json:"type"` // usb_4g, proxy_api, cloud_worker
	IsEnabled      bool         `db:"is_enabled" json:"is_enabled"`
	Status         string       `db:"status" json:"status"`
	CurrentIP      string       `db:"current_ip" json:"current_ip"`
	HealthScore    *int         `db:"health_score" json:"health_score,omitempty"`
	CostPerMonth   *float64     `db:"cost_per_month" json:"cost_per_month,omitempty"`
	LastRotatedAt  *time.Time   `db:"last_rotated_at" json:"last_rotated_at,omitempty"`
	TotalRotations int          `db:"total_rotations" json:"total_rotations"`
	Priority       int          `db:"priority" json:"priority"`
	Region         string       `db:"region" json:"region,omitempty"`
	Config         IpPoolConfig `db:"config" json:"-"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

const (
	PoolTypeUSB4G       = "usb_4g"
	PoolTypeProxyAPI    = "proxy_api"
	PoolTypeCloudWorker = "cloud_worker"

	PoolStatusActive   = "active"
	PoolStatusDisabled = "disabled"
)

// IpPoolConfig holds per-type connection parameters. Only the fields of the
// pool's own type are read.
type IpPoolConfig struct {
	ControlEndpoint string `json:"control_endpoint,omitempty"`
	AuthToken       string `json:"auth_token,omitempty"`
	APIEndpoint     string `json:"api_endpoint,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
	WorkerURL       string `json:"worker_url,omitempty"`
}

func (c IpPoolConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *IpPoolConfig) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = IpPoolConfig{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return errors.New("ip pool config: unsupported scan type")
}

type IpPoolSession struct {
	ID                  string     `db:"id" json:"id"`
	IPPoolID            string     `db:"ip_pool_id" json:"ip_pool_id"`
	IPAddress           string     `db:"ip_address" json:"ip_address"`
	SessionStart        time.Time  `db:"session_start" json:"session_start"`
	SessionEnd          *time.Time `db:"session_end" json:"session_end,omitempty"`
	PostsCount          int        `db:"posts_count" json:"posts_count"`
	FailCount           int        `db:"fail_count" json:"fail_count"`
	AveragePostDuration int64      `db:"average_post_duration" json:"average_post_duration_ms"`
	BatchID             string     `db:"batch_id" json:"batch_id,omitempty"`
}

// Attempts is the number of posts tried through the session.
func (s *IpPoolSession) Attempts() int {
	return s.PostsCount + s.FailCount
}

func (s *IpPoolSession) Active() bool {
	return s.SessionEnd == nil
}

// RecordAttempt applies one post outcome. The running average only moves
// on successes that carry a response time.
func (s *IpPoolSession) RecordAttempt(success bool, responseTime *time.Duration) {
	if !success {
		s.FailCount++
		return
	}
	if responseTime != nil {
		ms := responseTime.Milliseconds()
		total := float64(s.AveragePostDuration)*float64(s.PostsCount) + float64(ms)
		s.AveragePostDuration = int64(math.Round(total / float64(s.PostsCount+1)))
	}
	s.PostsCount++
}

type IpRotationLog struct {
	ID           string    `db:"id" json:"id"`
	IPPoolID     string    `db:"ip_pool_id" json:"ip_pool_id"`
	OldIP        string    `db:"old_ip" json:"old_ip"`
	NewIP        string    `db:"new_ip" json:"new_ip,omitempty"`
	Trigger      string    `db:"rotation_trigger" json:"trigger"`
	Reason       string    `db:"reason" json:"reason"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	RotatedAt    time.Time `db:"rotated_at" json:"rotated_at"`
}

const (
	TriggerBatchThreshold    = "batch_threshold"
	TriggerTimeInterval      = "time_interval"
	TriggerErrorRecovery     = "error_recovery"
	TriggerHealthDegradation = "health_degradation"
	TriggerManual            = "manual"
)

// ScoreBreakdown holds the four sub-scores of a pool, each 0-100.
type ScoreBreakdown struct {
	Health      float64 `json:"health"`
	Load        float64 `json:"load"`
	Cost        float64 `json:"cost"`
	Performance float64 `json:"performance"`
}

type PoolScore struct {
	Pool      *IpPool        `json:"pool"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

type AssignmentResult struct {
	Pool         *IpPool        `json:"pool"`
	SessionID    string         `json:"session_id,omitempty"`
	Score        float64        `json:"score"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Reason       string         `json:"reason"`
	Alternatives []PoolScore    `json:"alternatives"`
}

type PoolLoad struct {
	Pool        *IpPool `json:"pool"`
	ActivePosts int     `json:"active_posts"`
	LoadScore   float64 `json:"load_score"`
}

type RotationResult struct {
	Success   bool      `json:"success"`
	Rotated   bool      `json:"rotated"`
	PoolID    string    `json:"pool_id"`
	OldIP     string    `json:"old_ip"`
	NewIP     string    `json:"new_ip"`
	Trigger   string    `json:"trigger"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	RotatedAt time.Time `json:"rotated_at"`
}
