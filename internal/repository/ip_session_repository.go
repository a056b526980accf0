package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type IpSessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.IpPoolSession, error)
	GetActive(ctx context.Context, poolID string) (*models.IpPoolSession, error)
	ListByPool(ctx context.Context, poolID string) ([]*models.IpPoolSession, error)
	OpenSession(ctx context.Context, poolID, ip, batchID string) (*models.IpPoolSession, error)
	SaveStats(ctx context.Context, s *models.IpPoolSession) error
	Close(ctx context.Context, id string, at time.Time) error
	CloseActive(ctx context.Context, poolID string, at time.Time) error
}

type ipSessionRepository struct {
	db *sql.DB
}

func NewIpSessionRepository(db *sql.DB) IpSessionRepository {
	return &ipSessionRepository{db: db}
}

const sessionSelect = `
	SELECT id, ip_pool_id, ip_address, session_start, session_end, posts_count, fail_count,
		average_post_duration, COALESCE(batch_id, '')
	FROM ip_pool_sessions
`

func scanSession(row rowScanner) (*models.IpPoolSession, error) {
	var s models.IpPoolSession
	err := row.Scan(&s.ID, &s.IPPoolID, &s.IPAddress, &s.SessionStart, &s.SessionEnd,
		&s.PostsCount, &s.FailCount, &s.AveragePostDuration, &s.BatchID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ipSessionRepository) GetByID(ctx context.Context, id string) (*models.IpPoolSession, error) {
	return r.one(ctx, sessionSelect+` WHERE id = $1`, id)
}

func (r *ipSessionRepository) GetActive(ctx context.Context, poolID string) (*models.IpPoolSession, error) {
	return r.one(ctx, sessionSelect+` WHERE ip_pool_id = $1 AND session_end IS NULL`, poolID)
}

func (r *ipSessionRepository) one(ctx context.Context, query string, args ...any) (*models.IpPoolSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *ipSessionRepository) ListByPool(ctx context.Context, poolID string) ([]*models.IpPoolSession, error) {
	rows, err := r.db.QueryContext(ctx, sessionSelect+` WHERE ip_pool_id = $1 ORDER BY session_start DESC`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.IpPoolSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// OpenSession returns the pool's open session, creating it if needed. The
// partial unique index on open sessions makes concurrent callers converge
// on a single row.
func (r *ipSessionRepository) OpenSession(ctx context.Context, poolID, ip, batchID string) (*models.IpPoolSession, error) {
	query := `
		INSERT INTO ip_pool_sessions (id, ip_pool_id, ip_address, session_start, batch_id)
		VALUES ($1, $2, $3, NOW(), NULLIF($4, ''))
		ON CONFLICT (ip_pool_id) WHERE session_end IS NULL DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), poolID, ip, batchID); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s, err := r.GetActive(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("open session for pool %s vanished", poolID)
	}
	return s, nil
}

func (r *ipSessionRepository) SaveStats(ctx context.Context, s *models.IpPoolSession) error {
	query := `
		UPDATE ip_pool_sessions SET posts_count = $2, fail_count = $3, average_post_duration = $4
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.PostsCount, s.FailCount, s.AveragePostDuration)
	return err
}

func (r *ipSessionRepository) Close(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE ip_pool_sessions SET session_end = $2 WHERE id = $1 AND session_end IS NULL`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func (r *ipSessionRepository) CloseActive(ctx context.Context, poolID string, at time.Time) error {
	query := `UPDATE ip_pool_sessions SET session_end = $2 WHERE ip_pool_id = $1 AND session_end IS NULL`
	_, err := r.db.ExecContext(ctx, query, poolID, at)
	return err
}
