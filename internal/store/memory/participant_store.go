package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lokapasar/sambatan/internal/domain"
)

// ParticipantStore is an in-memory domain.ParticipantStore.
type ParticipantStore struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
}

// NewParticipantStore creates an empty in-memory participant store.
func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{participants: make(map[string]domain.Participant)}
}

func (s *ParticipantStore) Create(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.participants[p.ID] = p
	return nil
}

func (s *ParticipantStore) GetByID(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *ParticipantStore) Update(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return domain.ErrNotFound
	}
	s.participants[p.ID] = p
	return nil
}

func (s *ParticipantStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok || p.Status != domain.ParticipantStatusPendingPayment {
		return domain.ErrNotFound
	}
	delete(s.participants, id)
	return nil
}

func (s *ParticipantStore) ListByCampaign(_ context.Context, campaignID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Participant
	for _, p := range s.participants {
		if p.CampaignID == campaignID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *ParticipantStore) ListByCampaignAndStatus(_ context.Context, campaignID string, statuses ...domain.ParticipantStatus) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[domain.ParticipantStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []domain.Participant
	for _, p := range s.participants {
		if p.CampaignID == campaignID && want[p.Status] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

var _ domain.ParticipantStore = (*ParticipantStore)(nil)
