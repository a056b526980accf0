package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/maheshrc27/postdispatch/internal/models"
)

// RotationLogRepository is append-only.
type RotationLogRepository interface {
	Create(ctx context.Context, l *models.IpRotationLog) (string, error)
	ListByPool(ctx context.Context, poolID string, limit int) ([]*models.IpRotationLog, error)
}

type rotationLogRepository struct {
	db *sql.DB
}

func NewRotationLogRepository(db *sql.DB) RotationLogRepository {
	return &rotationLogRepository{db: db}
}

func (r *rotationLogRepository) Create(ctx context.Context, l *models.IpRotationLog) (string, error) {
	query := `
		INSERT INTO ip_rotation_logs (id, ip_pool_id, old_ip, new_ip, rotation_trigger, reason, success, error_message, rotated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, query, l.ID, l.IPPoolID, l.OldIP, l.NewIP, l.Trigger, l.Reason, l.Success, l.ErrorMessage, l.RotatedAt)
	if err != nil {
		return "", err
	}
	return l.ID, nil
}

func (r *rotationLogRepository) ListByPool(ctx context.Context, poolID string, limit int) ([]*models.IpRotationLog, error) {
	query := `
		SELECT id, ip_pool_id, old_ip, new_ip, rotation_trigger, reason, success, error_message, rotated_at
		FROM ip_rotation_logs
		WHERE ip_pool_id = $1
		ORDER BY rotated_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, poolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.IpRotationLog
	for rows.Next() {
		var l models.IpRotationLog
		if err := rows.Scan(&l.ID, &l.IPPoolID, &l.OldIP, &l.NewIP, &l.Trigger, &l.Reason, &l.Success, &l.ErrorMessage, &l.RotatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
