package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// AuditStore is an in-memory append-only domain.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	nextID  int64
}

// NewAuditStore creates an empty in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{nextID: 1}
}

func (s *AuditStore) Record(_ context.Context, campaignID, event string, metadata map[string]any, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if actor == "" {
		actor = "system"
	}
	s.entries = append(s.entries, domain.AuditEntry{
		ID:         s.nextID,
		CampaignID: campaignID,
		Event:      event,
		Metadata:   metadata,
		Actor:      actor,
		CreatedAt:  time.Now().UTC(),
	})
	s.nextID++
	return nil
}

func (s *AuditStore) ListByCampaign(_ context.Context, campaignID string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].CampaignID == campaignID {
			out = append(out, s.entries[i])
		}
	}
	return paginate(out, opts), nil
}

func (s *AuditStore) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEntry
	for _, e := range s.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
