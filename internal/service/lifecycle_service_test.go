package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
)

func TestLaunchActivatesDraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusDraft, 10, nil, 50_000, time.Now().Add(time.Hour))

	launched, err := e.lifecycleSvc.Launch(ctx, c.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusActive, launched.Status)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventCampaignLaunched)
}

func TestLaunchRejectsActiveCampaign(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 50_000, time.Now().Add(time.Hour))

	_, err := e.lifecycleSvc.Launch(ctx, c.ID, "operator-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestLaunchRejectsPassedDeadline(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusDraft, 10, nil, 50_000, time.Now().Add(-time.Minute))

	_, err := e.lifecycleSvc.Launch(ctx, c.ID, "operator-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancelRefundsEveryParticipant(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 60_000, time.Now().Add(time.Hour))

	e.join(t, c.ID, "buyer-1", 2, c.SlotPrice)
	e.join(t, c.ID, "buyer-2", 3, c.SlotPrice)

	cancelled, err := e.lifecycleSvc.Cancel(ctx, c.ID, "operator-1", "supplier backed out")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusCancelled, cancelled.Status)

	for _, buyer := range []string{"buyer-1", "buyer-2"} {
		_, held := e.wallet.Balance(buyer)
		assert.Zero(t, held, "%s should hold nothing after cancel", buyer)
	}
	available1, _ := e.wallet.Balance("buyer-1")
	assert.Equal(t, int64(120_000), available1)
	available2, _ := e.wallet.Balance("buyer-2")
	assert.Equal(t, int64(180_000), available2)

	refunded, err := e.participants.ListByCampaignAndStatus(ctx, c.ID, domain.ParticipantStatusRefunded)
	require.NoError(t, err)
	assert.Len(t, refunded, 2)

	events := e.auditEvents(t, c.ID)
	assert.Contains(t, events, domain.EventCampaignCancelled)
	assert.Contains(t, events, domain.EventFundsRefunded)
}

func TestCancelRejectsTerminalCampaign(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, status := range []domain.CampaignStatus{
		domain.CampaignStatusFulfilled,
		domain.CampaignStatusExpired,
		domain.CampaignStatusCancelled,
	} {
		c := e.seedCampaign(t, status, 10, nil, 50_000, time.Now().Add(time.Hour))
		_, err := e.lifecycleSvc.Cancel(ctx, c.ID, "operator-1", "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "status %s", status)
	}
}

func TestResolveDeadlineExpiresBelowMinimum(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, intPtr(5), 40_000, time.Now().Add(50*time.Millisecond))

	e.join(t, c.ID, "buyer-1", 2, c.SlotPrice)
	time.Sleep(60 * time.Millisecond)

	resolved, err := e.lifecycleSvc.ResolveDeadline(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusExpired, resolved.Status)

	available, held := e.wallet.Balance("buyer-1")
	assert.Equal(t, int64(80_000), available)
	assert.Zero(t, held)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventCampaignExpired)
}

func TestResolveDeadlineFulfillsAtMinimum(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, intPtr(5), 100_000, time.Now().Add(50*time.Millisecond))

	e.join(t, c.ID, "buyer-1", 3, c.SlotPrice)
	e.join(t, c.ID, "buyer-2", 2, c.SlotPrice)
	time.Sleep(60 * time.Millisecond)

	resolved, err := e.lifecycleSvc.ResolveDeadline(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusFulfilled, resolved.Status)

	// 5 slots at 100k gross 500k, 3% fee 15k, net 485k.
	sellerAvailable, _ := e.wallet.Balance("seller")
	assert.Equal(t, int64(485_000), sellerAvailable)
	platformAvailable, _ := e.wallet.Balance(e.wallet.PlatformAccount)
	assert.Equal(t, int64(15_000), platformAvailable)

	fulfilled, err := e.participants.ListByCampaignAndStatus(ctx, c.ID, domain.ParticipantStatusFulfilled)
	require.NoError(t, err)
	assert.Len(t, fulfilled, 2)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventCampaignFulfilled)
}

func TestResolveDeadlineNoMinimumFulfillsAnyParticipation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 100_000, time.Now().Add(50*time.Millisecond))

	e.join(t, c.ID, "buyer-1", 1, c.SlotPrice)
	time.Sleep(60 * time.Millisecond)

	resolved, err := e.lifecycleSvc.ResolveDeadline(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusFulfilled, resolved.Status)
}

func TestResolveDeadlineLeavesFutureAndTerminalAlone(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	t.Run("future deadline", func(t *testing.T) {
		c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 50_000, time.Now().Add(time.Hour))
		resolved, err := e.lifecycleSvc.ResolveDeadline(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CampaignStatusActive, resolved.Status)
	})

	t.Run("already terminal", func(t *testing.T) {
		c := e.seedCampaign(t, domain.CampaignStatusCancelled, 10, nil, 50_000, time.Now().Add(-time.Hour))
		resolved, err := e.lifecycleSvc.ResolveDeadline(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CampaignStatusCancelled, resolved.Status)
	})
}

// flakyWallet fails configured refund holds once, then behaves.
type flakyWallet struct {
	domain.WalletClient
	failRefunds map[string]bool
}

func (w *flakyWallet) RefundHeldFunds(ctx context.Context, txID string) (string, error) {
	if w.failRefunds[txID] {
		delete(w.failRefunds, txID)
		return "", fmt.Errorf("wallet service unavailable")
	}
	return w.WalletClient.RefundHeldFunds(ctx, txID)
}

func TestResolveDeadlinePartialFailureRetriesCleanly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, intPtr(8), 30_000, time.Now().Add(50*time.Millisecond))

	p1 := e.join(t, c.ID, "buyer-1", 1, c.SlotPrice)
	e.join(t, c.ID, "buyer-2", 1, c.SlotPrice)
	time.Sleep(60 * time.Millisecond)

	flaky := &flakyWallet{
		WalletClient: e.wallet,
		failRefunds:  map[string]bool{p1.HoldTxID: true},
	}
	settlementSvc := NewSettlementService(
		e.participants, e.settlements, flaky, e.audit, e.bus, 0.03, testLogger(),
	)
	lifecycleSvc := NewLifecycleService(
		e.campaigns, e.participants, settlementSvc, e.locks, e.cache, e.audit, e.bus,
		nil, time.Second, testLogger(),
	)

	// First pass: buyer-1's refund fails, buyer-2's succeeds, the
	// campaign stays active for retry.
	_, err := lifecycleSvc.ResolveDeadline(ctx, c.ID)
	require.ErrorIs(t, err, domain.ErrSettlementFailure)

	current, err := e.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusActive, current.Status)

	available2, _ := e.wallet.Balance("buyer-2")
	assert.Equal(t, int64(30_000), available2)

	// Second pass: only buyer-1 is left; buyer-2's completed refund is
	// not replayed against the wallet.
	resolved, err := lifecycleSvc.ResolveDeadline(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignStatusExpired, resolved.Status)

	available1, _ := e.wallet.Balance("buyer-1")
	assert.Equal(t, int64(30_000), available1)
	available2, _ = e.wallet.Balance("buyer-2")
	assert.Equal(t, int64(30_000), available2)

	records, err := e.settlements.ListByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
