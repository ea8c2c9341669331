package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubResolver records which campaigns it was asked to settle and can
// fail selected IDs.
type stubResolver struct {
	mu       sync.Mutex
	store    *memory.CampaignStore
	resolved []string
	failIDs  map[string]bool
}

func (r *stubResolver) ResolveDeadline(ctx context.Context, campaignID string) (domain.Campaign, error) {
	r.mu.Lock()
	r.resolved = append(r.resolved, campaignID)
	fail := r.failIDs[campaignID]
	r.mu.Unlock()

	if fail {
		return domain.Campaign{}, fmt.Errorf("resolve %s: wallet unavailable", campaignID)
	}

	c, err := r.store.GetByID(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	c.Status = domain.CampaignStatusExpired
	if err := r.store.Update(ctx, c); err != nil {
		return domain.Campaign{}, err
	}
	return c, nil
}

func (r *stubResolver) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.resolved...)
}

func seedCampaign(t *testing.T, store *memory.CampaignStore, id string, status domain.CampaignStatus, deadline time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), domain.Campaign{
		ID:         id,
		Title:      id,
		TotalSlots: 10,
		SlotPrice:  10_000,
		Deadline:   deadline,
		Status:     status,
	}))
}

func TestSweepResolvesOverdueCampaigns(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCampaignStore()
	locks := memory.NewLockManager()

	seedCampaign(t, store, "overdue-1", domain.CampaignStatusActive, time.Now().Add(-time.Minute))
	seedCampaign(t, store, "overdue-2", domain.CampaignStatusLocked, time.Now().Add(-time.Hour))
	seedCampaign(t, store, "future", domain.CampaignStatusActive, time.Now().Add(time.Hour))
	seedCampaign(t, store, "already-done", domain.CampaignStatusExpired, time.Now().Add(-time.Hour))

	resolver := &stubResolver{store: store}
	s := NewSweeper(store, resolver, locks, time.Minute, time.Minute, testLogger())

	require.NoError(t, s.Sweep(ctx))
	assert.ElementsMatch(t, []string{"overdue-1", "overdue-2"}, resolver.calls())

	t.Run("second sweep finds nothing left", func(t *testing.T) {
		require.NoError(t, s.Sweep(ctx))
		assert.Len(t, resolver.calls(), 2)
	})
}

func TestSweepSkipsTickWhenLeaderLockHeld(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCampaignStore()
	locks := memory.NewLockManager()

	seedCampaign(t, store, "overdue-1", domain.CampaignStatusActive, time.Now().Add(-time.Minute))

	unlock, err := locks.Acquire(ctx, "sweeper", time.Minute)
	require.NoError(t, err)

	resolver := &stubResolver{store: store}
	s := NewSweeper(store, resolver, locks, time.Minute, time.Minute, testLogger())

	// Skipping is not an error; another instance owns this tick.
	require.NoError(t, s.Sweep(ctx))
	assert.Empty(t, resolver.calls())

	unlock()
	require.NoError(t, s.Sweep(ctx))
	assert.Equal(t, []string{"overdue-1"}, resolver.calls())
}

func TestSweepIsolatesPerCampaignFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCampaignStore()
	locks := memory.NewLockManager()

	seedCampaign(t, store, "stuck", domain.CampaignStatusActive, time.Now().Add(-time.Minute))
	seedCampaign(t, store, "fine", domain.CampaignStatusActive, time.Now().Add(-time.Minute))

	resolver := &stubResolver{store: store, failIDs: map[string]bool{"stuck": true}}
	s := NewSweeper(store, resolver, locks, time.Minute, time.Minute, testLogger())

	// A failing campaign does not abort the sweep.
	require.NoError(t, s.Sweep(ctx))
	assert.ElementsMatch(t, []string{"stuck", "fine"}, resolver.calls())

	fine, err := store.GetByID(ctx, "fine")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusExpired, fine.Status)

	stuck, err := store.GetByID(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusActive, stuck.Status)

	t.Run("the stuck campaign is retried next sweep", func(t *testing.T) {
		require.NoError(t, s.Sweep(ctx))
		calls := resolver.calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "stuck", calls[2])
	})
}
