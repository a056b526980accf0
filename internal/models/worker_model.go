package models

import "time"

type Worker struct {
	ID                string     `db:"id" json:"id"`
	WorkerID          string     `db:"worker_id" json:"worker_id"`
	Name              string     `db:"name" json:"name"`
	Platforms         []string   `db:"platforms" json:"platforms"`
	Capabilities      []string   `db:"capabilities" json:"capabilities"`
	MaxConcurrentJobs int        `db:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	AvgExecutionTime  int        `db:"avg_execution_time" json:"avg_execution_time_seconds"`
	Region            string     `db:"region" json:"region"`
	EndpointURL       string     `db:"endpoint_url" json:"endpoint_url,omitempty"`
	IsOnline          bool       `db:"is_online" json:"is_online"`
	IsEnabled         bool       `db:"is_enabled" json:"is_enabled"`
	SuccessRate       float64    `db:"success_rate" json:"success_rate"`
	LastJobAt         *time.Time `db:"last_job_at" json:"last_job_at,omitempty"`
}

func (w *Worker) Available() bool {
	return w.IsOnline && w.IsEnabled
}

func (w *Worker) SupportsPlatform(platform string) bool {
	for _, p := range w.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Concurrency is MaxConcurrentJobs with a floor of one.
func (w *Worker) Concurrency() int {
	if w.MaxConcurrentJobs < 1 {
		return 1
	}
	return w.MaxConcurrentJobs
}
