package memory

import (
	"context"
	"sync"

	"github.com/lokapasar/sambatan/internal/domain"
)

// CampaignCache is an in-process domain.CampaignCache. Entries never
// expire; invalidation on mutation keeps it coherent.
type CampaignCache struct {
	mu        sync.RWMutex
	campaigns map[string]domain.Campaign
}

// NewCampaignCache creates an empty in-process campaign cache.
func NewCampaignCache() *CampaignCache {
	return &CampaignCache{campaigns: make(map[string]domain.Campaign)}
}

func (c *CampaignCache) Set(_ context.Context, campaign domain.Campaign) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.campaigns[campaign.ID] = campaign
	return nil
}

func (c *CampaignCache) Get(_ context.Context, id string) (domain.Campaign, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	campaign, ok := c.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return campaign, nil
}

func (c *CampaignCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.campaigns, id)
	return nil
}

var _ domain.CampaignCache = (*CampaignCache)(nil)
