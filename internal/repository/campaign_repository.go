package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/redis/go-redis/v9"
)

// CampaignRepository persists campaign executions so they survive a restart.
type CampaignRepository interface {
	Save(ctx context.Context, c *models.CampaignExecution) error
	List(ctx context.Context) ([]*models.CampaignExecution, error)
}

const campaignHashKey = "postdispatch:campaigns"

type redisCampaignRepository struct {
	rdb *redis.Client
}

func NewRedisCampaignRepository(rdb *redis.Client) CampaignRepository {
	return &redisCampaignRepository{rdb: rdb}
}

func (r *redisCampaignRepository) Save(ctx context.Context, c *models.CampaignExecution) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.rdb.HSet(ctx, campaignHashKey, c.CampaignID, data).Err(); err != nil {
		return fmt.Errorf("save campaign %s: %w", c.CampaignID, err)
	}
	return nil
}

func (r *redisCampaignRepository) List(ctx context.Context) ([]*models.CampaignExecution, error) {
	values, err := r.rdb.HGetAll(ctx, campaignHashKey).Result()
	if err != nil {
		return nil, err
	}

	campaigns := make([]*models.CampaignExecution, 0, len(values))
	for id, raw := range values {
		var c models.CampaignExecution
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode campaign %s: %w", id, err)
		}
		campaigns = append(campaigns, &c)
	}
	return campaigns, nil
}
