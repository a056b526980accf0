package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
)

type IpPoolRepository interface {
	GetByID(ctx context.Context, id string) (*models.IpPool, error)
	List(ctx context.Context) ([]*models.IpPool, error)
	ListActive(ctx context.Context) ([]*models.IpPool, error)
	UpdateRotation(ctx context.Context, id, newIP string, at time.Time) error
}

type ipPoolRepository struct {
	db *sql.DB
}

func NewIpPoolRepository(db *sql.DB) IpPoolRepository {
	return &ipPoolRepository{db: db}
}

const poolSelect = `
	SELECT id, name, type, is_enabled, status, current_ip, health_score, cost_per_month,
		last_rotated_at, total_rotations, priority, region, config, created_at, updated_at
	FROM ip_pools
`

func scanPool(row rowScanner) (*models.IpPool, error) {
	var p models.IpPool
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.IsEnabled, &p.Status, &p.CurrentIP, &p.HealthScore, &p.CostPerMonth,
		&p.LastRotatedAt, &p.TotalRotations, &p.Priority, &p.Region, &p.Config, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ipPoolRepository) GetByID(ctx context.Context, id string) (*models.IpPool, error) {
	pool, err := scanPool(r.db.QueryRowContext(ctx, poolSelect+` WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return pool, nil
}

func (r *ipPoolRepository) List(ctx context.Context) ([]*models.IpPool, error) {
	return r.list(ctx, poolSelect+` ORDER BY priority DESC, name`)
}

// ListActive returns enabled pools with status active.
func (r *ipPoolRepository) ListActive(ctx context.Context) ([]*models.IpPool, error) {
	return r.list(ctx, poolSelect+` WHERE is_enabled AND status = $1 ORDER BY priority DESC, name`, models.PoolStatusActive)
}

func (r *ipPoolRepository) list(ctx context.Context, query string, args ...any) ([]*models.IpPool, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []*models.IpPool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

func (r *ipPoolRepository) UpdateRotation(ctx context.Context, id, newIP string, at time.Time) error {
	query := `
		UPDATE ip_pools
		SET current_ip = $2, last_rotated_at = $3, total_rotations = total_rotations + 1, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, newIP, at)
	return err
}
