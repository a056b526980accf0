package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type MediaAssetRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]*models.MediaAsset, error)
	IncrementUsage(ctx context.Context, ids []string) error
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

// GetByIDs returns the assets in the order of ids, skipping unknown ids.
func (r *mediaAssetRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.MediaAsset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, file_name, file_type, object_key, secure_url, usage_count, created_at
		FROM media_assets WHERE id = ANY($1)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*models.MediaAsset, len(ids))
	for rows.Next() {
		var a models.MediaAsset
		if err := rows.Scan(&a.ID, &a.FileName, &a.FileType, &a.ObjectKey, &a.SecureURL, &a.UsageCount, &a.CreatedAt); err != nil {
			return nil, err
		}
		byID[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	assets := make([]*models.MediaAsset, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

func (r *mediaAssetRepository) IncrementUsage(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE media_assets SET usage_count = usage_count + 1 WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	return err
}
