package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lokapasar/sambatan/internal/domain"
)

const campaignTTL = 30 * time.Second

// CampaignCache implements domain.CampaignCache using JSON-serialized
// campaign snapshots. The TTL is short; the store stays authoritative
// and every mutation invalidates the entry.
//
// Key schema:
//
//	campaign:{id} - string value containing JSON
type CampaignCache struct {
	rdb *redis.Client
}

// NewCampaignCache creates a CampaignCache backed by the given Client.
func NewCampaignCache(c *Client) *CampaignCache {
	return &CampaignCache{rdb: c.Underlying()}
}

func campaignKey(id string) string { return "campaign:" + id }

// Set stores a campaign snapshot with a 30-second TTL.
func (cc *CampaignCache) Set(ctx context.Context, campaign domain.Campaign) error {
	data, err := json.Marshal(campaign)
	if err != nil {
		return fmt.Errorf("redis: marshal campaign %s: %w", campaign.ID, err)
	}

	if err := cc.rdb.Set(ctx, campaignKey(campaign.ID), data, campaignTTL).Err(); err != nil {
		return fmt.Errorf("redis: set campaign %s: %w", campaign.ID, err)
	}
	return nil
}

// Get retrieves a cached campaign snapshot.
// It returns domain.ErrNotFound when the key does not exist.
func (cc *CampaignCache) Get(ctx context.Context, id string) (domain.Campaign, error) {
	data, err := cc.rdb.Get(ctx, campaignKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, fmt.Errorf("redis: get campaign %s: %w", id, err)
	}

	var campaign domain.Campaign
	if err := json.Unmarshal(data, &campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("redis: unmarshal campaign %s: %w", id, err)
	}
	return campaign, nil
}

// Invalidate removes a campaign snapshot from the cache.
func (cc *CampaignCache) Invalidate(ctx context.Context, id string) error {
	if err := cc.rdb.Del(ctx, campaignKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate campaign %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CampaignCache = (*CampaignCache)(nil)
