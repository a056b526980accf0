package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type ContentRepository interface {
	List(ctx context.Context, f models.ContentFilter) ([]*models.ContentItem, error)
	GetByID(ctx context.Context, id string) (*models.ContentItem, error)
	IncrementUsage(ctx context.Context, id string, at time.Time) error
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

const contentSelect = `
	SELECT id, title, base_content, content_type, hashtags, asset_ids, tag_ids, platforms,
		priority, usage_count, last_used, status, created_at
	FROM content_library
`

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var c models.ContentItem
	err := row.Scan(&c.ID, &c.Title, &c.BaseContent, &c.ContentType, pq.Array(&c.Hashtags), pq.Array(&c.AssetIDs),
		pq.Array(&c.TagIDs), pq.Array(&c.Platforms), &c.Priority, &c.UsageCount, &c.LastUsed, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List filters the library. Results are ordered by priority (high first)
// then by ascending usage so rarely used content surfaces first.
func (r *contentRepository) List(ctx context.Context, f models.ContentFilter) ([]*models.ContentItem, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ContentType != "" {
		add("content_type = $%d", f.ContentType)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if len(f.TagIDs) > 0 {
		add("tag_ids && $%d", pq.Array(f.TagIDs))
	}
	if len(f.IDs) > 0 {
		add("id = ANY($%d)", pq.Array(f.IDs))
	}
	if f.Platform != "" {
		add("(cardinality(platforms) = 0 OR $%d = ANY(platforms))", f.Platform)
	}
	if f.UnusedSince != nil {
		add("(last_used IS NULL OR last_used < $%d)", *f.UnusedSince)
	}

	query := contentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY CASE priority WHEN 'high' THEN 3 WHEN 'low' THEN 1 ELSE 2 END DESC, usage_count ASC, created_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *contentRepository) GetByID(ctx context.Context, id string) (*models.ContentItem, error) {
	c, err := scanContent(r.db.QueryRowContext(ctx, contentSelect+` WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *contentRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE content_library SET usage_count = usage_count + 1, last_used = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}
