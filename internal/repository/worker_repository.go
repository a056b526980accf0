package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type WorkerRepository interface {
	List(ctx context.Context) ([]*models.Worker, error)
	TouchLastJob(ctx context.Context, workerID string, at time.Time) error
}

type workerRepository struct {
	db *sql.DB
}

func NewWorkerRepository(db *sql.DB) WorkerRepository {
	return &workerRepository{db: db}
}

func (r *workerRepository) List(ctx context.Context) ([]*models.Worker, error) {
	query := `
		SELECT id, worker_id, name, platforms, capabilities, max_concurrent_jobs, avg_execution_time,
			region, endpoint_url, is_online, is_enabled, success_rate, last_job_at
		FROM workers ORDER BY worker_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		var w models.Worker
		err := rows.Scan(&w.ID, &w.WorkerID, &w.Name, pq.Array(&w.Platforms), pq.Array(&w.Capabilities),
			&w.MaxConcurrentJobs, &w.AvgExecutionTime, &w.Region, &w.EndpointURL, &w.IsOnline, &w.IsEnabled,
			&w.SuccessRate, &w.LastJobAt)
		if err != nil {
			return nil, err
		}
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

func (r *workerRepository) TouchLastJob(ctx context.Context, workerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE workers SET last_job_at = $2 WHERE worker_id = $1`, workerID, at)
	return err
}
