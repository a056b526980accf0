package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/postdispatch/internal/models"
)

type AccountGroupRepository interface {
	GetByID(ctx context.Context, id string) (*models.AccountGroup, error)
	List(ctx context.Context) ([]*models.AccountGroup, error)
}

type accountGroupRepository struct {
	db *sql.DB
}

func NewAccountGroupRepository(db *sql.DB) AccountGroupRepository {
	return &accountGroupRepository{db: db}
}

func (r *accountGroupRepository) GetByID(ctx context.Context, id string) (*models.AccountGroup, error) {
	query := `SELECT id, name, weight, is_active, created_at FROM account_groups WHERE id = $1`

	var g models.AccountGroup
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Weight, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *accountGroupRepository) List(ctx context.Context) ([]*models.AccountGroup, error) {
	query := `SELECT id, name, weight, is_active, created_at FROM account_groups WHERE is_active ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.AccountGroup
	for rows.Next() {
		var g models.AccountGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Weight, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}
