package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postdispatch/internal/models"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.SocialAccount, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.SocialAccount, error)
	ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error)
	ListAll(ctx context.Context) ([]*models.SocialAccount, error)
	TouchLastPost(ctx context.Context, id string, at time.Time) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const accountSelect = `
	SELECT a.id, a.platform, a.account_name, a.account_username, a.page_access_tokens,
		a.facebook_app_id, m.group_id, a.is_active, a.connected, a.last_post, a.created_at, a.updated_at
	FROM social_accounts a
	LEFT JOIN account_group_members m ON m.social_account_id = a.id
`

func scanAccount(row rowScanner) (*models.SocialAccount, error) {
	var a models.SocialAccount
	var appID, groupID sql.NullString
	err := row.Scan(
		&a.ID, &a.Platform, &a.AccountName, &a.AccountUsername, &a.PageAccessTokens,
		&appID, &groupID, &a.IsActive, &a.Connected, &a.LastPost, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.FacebookAppID = appID.String
	a.GroupID = groupID.String
	return &a, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id string) (*models.SocialAccount, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, accountSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return acc, nil
}

func (r *socialAccountRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.SocialAccount, error) {
	return r.list(ctx, accountSelect+` WHERE a.id = ANY($1) ORDER BY a.created_at`, pq.Array(ids))
}

func (r *socialAccountRepository) ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error) {
	return r.list(ctx, accountSelect+` WHERE a.platform = $1 ORDER BY a.created_at`, platform)
}

func (r *socialAccountRepository) ListAll(ctx context.Context) ([]*models.SocialAccount, error) {
	return r.list(ctx, accountSelect+` ORDER BY a.created_at`)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) TouchLastPost(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE social_accounts SET last_post = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}
