// Package memory provides in-memory implementations of the storage and
// coordination interfaces. They back tests and single-process local
// runs; production wiring uses the postgres and redis packages.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// CampaignStore is an in-memory domain.CampaignStore.
type CampaignStore struct {
	mu        sync.RWMutex
	campaigns map[string]domain.Campaign
}

// NewCampaignStore creates an empty in-memory campaign store.
func NewCampaignStore() *CampaignStore {
	return &CampaignStore{campaigns: make(map[string]domain.Campaign)}
}

func (s *CampaignStore) Create(_ context.Context, c domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.campaigns[c.ID] = c
	return nil
}

func (s *CampaignStore) GetByID(_ context.Context, id string) (domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *CampaignStore) Update(_ context.Context, c domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.campaigns[c.ID] = c
	return nil
}

func (s *CampaignStore) ListExpiring(_ context.Context, before time.Time) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Campaign
	for _, c := range s.campaigns {
		switch c.Status {
		case domain.CampaignStatusActive, domain.CampaignStatusLocked:
			if !c.Deadline.After(before) {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *CampaignStore) ListByStatus(_ context.Context, status domain.CampaignStatus, opts domain.ListOpts) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

var _ domain.CampaignStore = (*CampaignStore)(nil)
