package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
)

func TestCampaignStoreListExpiring(t *testing.T) {
	ctx := context.Background()
	s := NewCampaignStore()

	now := time.Now()
	seed := func(id string, status domain.CampaignStatus, deadline time.Time) {
		require.NoError(t, s.Create(ctx, domain.Campaign{ID: id, Status: status, Deadline: deadline}))
	}
	seed("active-overdue", domain.CampaignStatusActive, now.Add(-time.Hour))
	seed("locked-overdue", domain.CampaignStatusLocked, now.Add(-time.Minute))
	seed("active-future", domain.CampaignStatusActive, now.Add(time.Hour))
	seed("draft-overdue", domain.CampaignStatusDraft, now.Add(-time.Hour))
	seed("expired-overdue", domain.CampaignStatusExpired, now.Add(-time.Hour))

	out, err := s.ListExpiring(ctx, now)
	require.NoError(t, err)

	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	// Oldest deadline first.
	assert.Equal(t, []string{"active-overdue", "locked-overdue"}, ids)
}

func TestCampaignStoreUpdateUnknown(t *testing.T) {
	s := NewCampaignStore()
	err := s.Update(context.Background(), domain.Campaign{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParticipantStoreDeleteOnlyPending(t *testing.T) {
	ctx := context.Background()
	s := NewParticipantStore()

	require.NoError(t, s.Create(ctx, domain.Participant{
		ID: "p-1", CampaignID: "c-1", Status: domain.ParticipantStatusPendingPayment,
	}))
	require.NoError(t, s.Create(ctx, domain.Participant{
		ID: "p-2", CampaignID: "c-1", Status: domain.ParticipantStatusConfirmed,
	}))

	require.NoError(t, s.Delete(ctx, "p-1"))
	_, err := s.GetByID(ctx, "p-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A confirmed participant is never physically deleted.
	err = s.Delete(ctx, "p-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetByID(ctx, "p-2")
	assert.NoError(t, err)
}

func TestParticipantStoreListByCampaignAndStatus(t *testing.T) {
	ctx := context.Background()
	s := NewParticipantStore()

	require.NoError(t, s.Create(ctx, domain.Participant{
		ID: "p-1", CampaignID: "c-1", Status: domain.ParticipantStatusConfirmed, JoinedAt: time.Now(),
	}))
	require.NoError(t, s.Create(ctx, domain.Participant{
		ID: "p-2", CampaignID: "c-1", Status: domain.ParticipantStatusRefunded, JoinedAt: time.Now(),
	}))
	require.NoError(t, s.Create(ctx, domain.Participant{
		ID: "p-3", CampaignID: "c-2", Status: domain.ParticipantStatusConfirmed, JoinedAt: time.Now(),
	}))

	out, err := s.ListByCampaignAndStatus(ctx, "c-1",
		domain.ParticipantStatusConfirmed, domain.ParticipantStatusPendingPayment)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p-1", out[0].ID)
}

func TestSettlementStoreRejectsDuplicateDisposition(t *testing.T) {
	ctx := context.Background()
	s := NewSettlementStore()

	rec := domain.SettlementRecord{
		ID:            "s-1",
		CampaignID:    "c-1",
		ParticipantID: "p-1",
		Disposition:   domain.DispositionPayout,
		GrossAmount:   100,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.Create(ctx, rec))

	dup := rec
	dup.ID = "s-2"
	assert.ErrorIs(t, s.Create(ctx, dup), domain.ErrAlreadyExists)

	// A different disposition for the same participant is fine.
	refund := rec
	refund.ID = "s-3"
	refund.Disposition = domain.DispositionRefund
	assert.NoError(t, s.Create(ctx, refund))

	got, err := s.GetByParticipant(ctx, "p-1", domain.DispositionPayout)
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.ID)
}

func TestSettlementStoreSumByCampaign(t *testing.T) {
	ctx := context.Background()
	s := NewSettlementStore()

	records := []domain.SettlementRecord{
		{ID: "s-1", CampaignID: "c-1", ParticipantID: "p-1", Disposition: domain.DispositionPayout, GrossAmount: 100_000, FeeAmount: 3_000, NetAmount: 97_000},
		{ID: "s-2", CampaignID: "c-1", ParticipantID: "p-2", Disposition: domain.DispositionPayout, GrossAmount: 200_000, FeeAmount: 6_000, NetAmount: 194_000},
		{ID: "s-3", CampaignID: "c-1", ParticipantID: "p-3", Disposition: domain.DispositionRefund, GrossAmount: 50_000, NetAmount: 50_000},
		{ID: "s-4", CampaignID: "c-2", ParticipantID: "p-4", Disposition: domain.DispositionPayout, GrossAmount: 999, FeeAmount: 30, NetAmount: 969},
	}
	for _, rec := range records {
		require.NoError(t, s.Create(ctx, rec))
	}

	gross, fee, net, err := s.SumByCampaign(ctx, "c-1", domain.DispositionPayout)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), gross)
	assert.Equal(t, int64(9_000), fee)
	assert.Equal(t, int64(291_000), net)

	gross, fee, net, err = s.SumByCampaign(ctx, "c-1", domain.DispositionRefund)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), gross)
	assert.Zero(t, fee)
	assert.Equal(t, int64(50_000), net)
}

func TestAuditStoreOrderingAndDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()

	require.NoError(t, s.Record(ctx, "c-1", "first", map[string]any{"n": 1}, ""))
	require.NoError(t, s.Record(ctx, "c-1", "second", nil, "operator-1"))
	require.NoError(t, s.Record(ctx, "c-2", "other", nil, "system"))

	out, err := s.ListByCampaign(ctx, "c-1", domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[0].Event)
	assert.Equal(t, "first", out[1].Event)
	assert.Equal(t, "system", out[1].Actor, "empty actor defaults to system")
	assert.Equal(t, "operator-1", out[0].Actor)
}

func TestLockManagerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	m := NewLockManager()

	unlock, err := m.Acquire(ctx, "campaign:c-1", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "campaign:c-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// A different key is independent.
	other, err := m.Acquire(ctx, "campaign:c-2", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	reacquired, err := m.Acquire(ctx, "campaign:c-1", time.Minute)
	require.NoError(t, err)
	reacquired()
}

func TestLockManagerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewLockManager()

	_, err := m.Acquire(ctx, "campaign:c-1", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// The abandoned lock has lapsed.
	unlock, err := m.Acquire(ctx, "campaign:c-1", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestRateLimiterWindow(t *testing.T) {
	ctx := context.Background()
	l := NewRateLimiter()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "join:buyer-1", 3, 50*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i)
	}
	ok, err := l.Allow(ctx, "join:buyer-1", 3, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys are unaffected.
	ok, err = l.Allow(ctx, "join:buyer-2", 3, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	// The window slides.
	time.Sleep(60 * time.Millisecond)
	ok, err = l.Allow(ctx, "join:buyer-1", 3, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBusPubSubAndStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewSignalBus()

	ch, err := b.Subscribe(ctx, "campaigns")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "campaigns", []byte(`{"event":"slot_reserved"}`)))
	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"event":"slot_reserved"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}

	require.NoError(t, b.StreamAppend(ctx, "campaigns:events", []byte("one")))
	require.NoError(t, b.StreamAppend(ctx, "campaigns:events", []byte("two")))

	msgs, err := b.StreamRead(ctx, "campaigns:events", "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", string(msgs[0].Payload))

	// Resume from the first ID.
	rest, err := b.StreamRead(ctx, "campaigns:events", msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "two", string(rest[0].Payload))
}
