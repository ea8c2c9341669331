package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

type settlementKey struct {
	participantID string
	disposition   domain.Disposition
}

// SettlementStore is an in-memory domain.SettlementStore. It enforces
// the same (participant, disposition) uniqueness that the postgres
// store gets from its unique index.
type SettlementStore struct {
	mu      sync.RWMutex
	records []domain.SettlementRecord
	byKey   map[settlementKey]int
}

// NewSettlementStore creates an empty in-memory settlement store.
func NewSettlementStore() *SettlementStore {
	return &SettlementStore{byKey: make(map[settlementKey]int)}
}

func (s *SettlementStore) Create(_ context.Context, rec domain.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := settlementKey{rec.ParticipantID, rec.Disposition}
	if _, ok := s.byKey[key]; ok {
		return domain.ErrAlreadyExists
	}
	s.byKey[key] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

func (s *SettlementStore) GetByParticipant(_ context.Context, participantID string, d domain.Disposition) (domain.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byKey[settlementKey{participantID, d}]
	if !ok {
		return domain.SettlementRecord{}, domain.ErrNotFound
	}
	return s.records[idx], nil
}

func (s *SettlementStore) ListByCampaign(_ context.Context, campaignID string) ([]domain.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SettlementRecord
	for _, rec := range s.records {
		if rec.CampaignID == campaignID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SettlementStore) SumByCampaign(_ context.Context, campaignID string, d domain.Disposition) (gross, fee, net int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.CampaignID == campaignID && rec.Disposition == d {
			gross += rec.GrossAmount
			fee += rec.FeeAmount
			net += rec.NetAmount
		}
	}
	return gross, fee, net, nil
}

func (s *SettlementStore) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SettlementRecord
	for _, rec := range s.records {
		if rec.CreatedAt.Before(before) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.SettlementStore = (*SettlementStore)(nil)
