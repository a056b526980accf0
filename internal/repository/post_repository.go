package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (string, error)
	CreateBatch(ctx context.Context, posts []*models.ScheduledPost) ([]string, error)
	GetByID(ctx context.Context, id string) (*models.ScheduledPost, error)
	ListDue(ctx context.Context, now time.Time, maxRetries int) ([]*models.ScheduledPost, error)
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string, at time.Time, reason string) error
	MarkPosted(ctx context.Context, id string, res models.PublishResult) error
	RecordFailure(ctx context.Context, id string, f models.PostFailure) error
	SetIPPool(ctx context.Context, id, poolID string) error
	Retag(ctx context.Context, id string, at time.Time, analytics models.Analytics) error
	WindowUsage(ctx context.Context, q models.UsageQuery) (models.WindowUsage, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	CountPublishedSince(ctx context.Context, since time.Time) (int, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const postColumns = `id, social_account_id, platform, caption, hashtags, asset_ids, scheduled_time, timezone,
	status, priority, retry_count, last_retry_at, error_message, platform_post_id, platform_url,
	published_at, ip_pool_id, ip_snapshot, batch_id, analytics, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var p models.ScheduledPost
	var poolID sql.NullString
	err := row.Scan(
		&p.ID, &p.SocialAccountID, &p.Platform, &p.Caption, pq.Array(&p.Hashtags), pq.Array(&p.AssetIDs),
		&p.ScheduledTime, &p.Timezone, &p.Status, &p.Priority, &p.RetryCount, &p.LastRetryAt,
		&p.ErrorMessage, &p.PlatformPostID, &p.PlatformURL, &p.PublishedAt, &poolID, &p.IPSnapshot,
		&p.BatchID, &p.Analytics, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.IPPoolID = poolID.String
	return &p, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (string, error) {
	query := `
		INSERT INTO scheduled_posts (id, social_account_id, platform, caption, hashtags, asset_ids,
			scheduled_time, timezone, status, priority, batch_id, analytics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = models.PostStatusScheduled
	}
	if post.Priority == 0 {
		post.Priority = models.DefaultPostPriority
	}
	if post.Timezone == "" {
		post.Timezone = "UTC"
	}

	args := []any{
		post.ID, post.SocialAccountID, post.Platform, post.Caption, pq.Array(post.Hashtags),
		pq.Array(post.AssetIDs), post.ScheduledTime, post.Timezone, post.Status, post.Priority,
		post.BatchID, post.Analytics,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return "", fmt.Errorf("insert scheduled post: %w", err)
	}

	return post.ID, nil
}

// CreateBatch inserts all posts in one transaction.
func (r *scheduledPostRepository) CreateBatch(ctx context.Context, posts []*models.ScheduledPost) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		id, err := r.Create(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit scheduled posts: %w", err)
	}
	return ids, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return post, nil
}

func (r *scheduledPostRepository) ListDue(ctx context.Context, now time.Time, maxRetries int) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = $1 AND scheduled_time <= $2 AND retry_count < $3
		ORDER BY scheduled_time ASC
	`
	return r.list(ctx, query, models.PostStatusScheduled, now, maxRetries)
}

func (r *scheduledPostRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + `
		FROM scheduled_posts
		WHERE status = $1 AND scheduled_time >= $2
		ORDER BY scheduled_time ASC
		LIMIT $3
	`
	return r.list(ctx, query, models.PostStatusScheduled, now, limit)
}

func (r *scheduledPostRepository) list(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// Claim moves a post from scheduled to posting. It returns false when
// another caller already moved it.
func (r *scheduledPostRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE scheduled_posts SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	res, err := r.db.ExecContext(ctx, query, id, models.PostStatusPosting, models.PostStatusScheduled)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release hands a claimed post back to the scheduler without consuming a retry.
func (r *scheduledPostRepository) Release(ctx context.Context, id string, at time.Time, reason string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $2, scheduled_time = $3, error_message = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusScheduled, at, reason, models.PostStatusPosting)
	return err
}

func (r *scheduledPostRepository) MarkPosted(ctx context.Context, id string, res models.PublishResult) error {
	query := `
		UPDATE scheduled_posts
		SET status = $2, platform_post_id = $3, platform_url = $4, ip_snapshot = $5,
			published_at = $6, error_message = '', updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusPosted, res.PlatformPostID, res.PlatformURL, res.IPSnapshot, res.PublishedAt)
	return err
}

func (r *scheduledPostRepository) RecordFailure(ctx context.Context, id string, f models.PostFailure) error {
	query := `
		UPDATE scheduled_posts
		SET status = $2, retry_count = $3, error_message = $4, scheduled_time = $5,
			last_retry_at = $6, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, f.Status, f.RetryCount, f.ErrorMessage, f.ScheduledTime, f.LastRetryAt)
	return err
}

func (r *scheduledPostRepository) SetIPPool(ctx context.Context, id, poolID string) error {
	query := `UPDATE scheduled_posts SET ip_pool_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, poolID)
	return err
}

func (r *scheduledPostRepository) Retag(ctx context.Context, id string, at time.Time, analytics models.Analytics) error {
	query := `
		UPDATE scheduled_posts SET scheduled_time = $2, analytics = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, id, at, analytics, models.PostStatusScheduled)
	return err
}

// WindowUsage counts the non-failed posts of a scope scheduled inside the
// window, leaving out q.ExcludePostID. Group usage joins group membership
// and app usage joins the account's app id.
func (r *scheduledPostRepository) WindowUsage(ctx context.Context, q models.UsageQuery) (models.WindowUsage, error) {
	var query string
	switch q.Scope {
	case models.ScopeAccount:
		query = `
			SELECT COUNT(*), MIN(p.scheduled_time) FROM scheduled_posts p
			WHERE p.social_account_id = $1 AND p.status <> $2 AND p.scheduled_time BETWEEN $3 AND $4 AND p.id <> $5
		`
	case models.ScopeGroup:
		query = `
			SELECT COUNT(*), MIN(p.scheduled_time) FROM scheduled_posts p
			JOIN account_group_members m ON m.social_account_id = p.social_account_id
			WHERE m.group_id = $1 AND p.status <> $2 AND p.scheduled_time BETWEEN $3 AND $4 AND p.id <> $5
		`
	case models.ScopeApp:
		query = `
			SELECT COUNT(*), MIN(p.scheduled_time) FROM scheduled_posts p
			JOIN social_accounts a ON a.id = p.social_account_id
			WHERE a.facebook_app_id = $1 AND p.status <> $2 AND p.scheduled_time BETWEEN $3 AND $4 AND p.id <> $5
		`
	default:
		return models.WindowUsage{}, fmt.Errorf("unknown limit scope %q", q.Scope)
	}

	var usage models.WindowUsage
	var oldest sql.NullTime
	err := r.db.QueryRowContext(ctx, query, q.ScopeID, models.PostStatusFailed, q.Start, q.End, q.ExcludePostID).Scan(&usage.Count, &oldest)
	if err != nil {
		return models.WindowUsage{}, err
	}
	if oldest.Valid {
		t := oldest.Time
		usage.Oldest = &t
	}
	return usage, nil
}

func (r *scheduledPostRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_posts WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *scheduledPostRepository) CountPublishedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM scheduled_posts WHERE status = $1 AND published_at >= $2`
	var n int
	err := r.db.QueryRowContext(ctx, query, models.PostStatusPosted, since).Scan(&n)
	return n, err
}
