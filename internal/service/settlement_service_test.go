package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
)

func TestReleaseParticipantPaysSellerMinusFee(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 100_000, time.Now().Add(time.Hour))
	p := e.join(t, c.ID, "buyer-1", 10, c.SlotPrice)

	rec, err := e.settlementSvc.ReleaseParticipant(ctx, c, p)
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionPayout, rec.Disposition)
	assert.Equal(t, int64(1_000_000), rec.GrossAmount)
	assert.Equal(t, int64(30_000), rec.FeeAmount)
	assert.Equal(t, int64(970_000), rec.NetAmount)
	assert.NotEmpty(t, rec.WalletTxID)

	sellerAvailable, _ := e.wallet.Balance("seller")
	assert.Equal(t, int64(970_000), sellerAvailable)
	platformAvailable, _ := e.wallet.Balance(e.wallet.PlatformAccount)
	assert.Equal(t, int64(30_000), platformAvailable)

	stored, err := e.participants.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantStatusFulfilled, stored.Status)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventFundsReleased)
}

func TestReleaseParticipantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 5, nil, 100_000, time.Now().Add(time.Hour))
	p := e.join(t, c.ID, "buyer-1", 1, c.SlotPrice)

	first, err := e.settlementSvc.ReleaseParticipant(ctx, c, p)
	require.NoError(t, err)

	second, err := e.settlementSvc.ReleaseParticipant(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.WalletTxID, second.WalletTxID)

	// The seller was paid exactly once.
	sellerAvailable, _ := e.wallet.Balance("seller")
	assert.Equal(t, first.NetAmount, sellerAvailable)

	records, err := e.settlements.ListByCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRefundParticipantReturnsFullAmount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 5, nil, 75_000, time.Now().Add(time.Hour))
	p := e.join(t, c.ID, "buyer-1", 2, c.SlotPrice)

	rec, err := e.settlementSvc.RefundParticipant(ctx, c, p, "deadline passed below minimum")
	require.NoError(t, err)

	assert.Equal(t, domain.DispositionRefund, rec.Disposition)
	assert.Equal(t, int64(150_000), rec.GrossAmount)
	assert.Zero(t, rec.FeeAmount)
	assert.Equal(t, int64(150_000), rec.NetAmount)

	available, held := e.wallet.Balance("buyer-1")
	assert.Equal(t, int64(150_000), available)
	assert.Zero(t, held)

	stored, err := e.participants.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantStatusRefunded, stored.Status)
	assert.NotNil(t, stored.CancelledAt)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventFundsRefunded)

	t.Run("replay returns the original record", func(t *testing.T) {
		again, err := e.settlementSvc.RefundParticipant(ctx, c, p, "retry")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, again.ID)

		available, _ := e.wallet.Balance("buyer-1")
		assert.Equal(t, int64(150_000), available)
	})
}

func TestRefundAfterReleaseFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 5, nil, 50_000, time.Now().Add(time.Hour))
	p := e.join(t, c.ID, "buyer-1", 1, c.SlotPrice)

	_, err := e.settlementSvc.ReleaseParticipant(ctx, c, p)
	require.NoError(t, err)

	_, err = e.settlementSvc.RefundParticipant(ctx, c, p, "should not happen")
	assert.ErrorIs(t, err, domain.ErrSettlementFailure)
	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventSettlementFailed)
}

func TestReleaseWithoutHoldFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 5, nil, 50_000, time.Now().Add(time.Hour))

	p := domain.Participant{
		ID:         "p-nohold",
		CampaignID: c.ID,
		BuyerID:    "buyer-1",
		SlotCount:  1,
		Status:     domain.ParticipantStatusPendingPayment,
	}
	_, err := e.settlementSvc.ReleaseParticipant(ctx, c, p)
	assert.ErrorIs(t, err, domain.ErrSettlementFailure)
}

func TestReconcileSumsPerDisposition(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 100_000, time.Now().Add(time.Hour))

	paid := e.join(t, c.ID, "buyer-1", 3, c.SlotPrice)
	refunded := e.join(t, c.ID, "buyer-2", 2, c.SlotPrice)

	_, err := e.settlementSvc.ReleaseParticipant(ctx, c, paid)
	require.NoError(t, err)
	_, err = e.settlementSvc.RefundParticipant(ctx, c, refunded, "test")
	require.NoError(t, err)

	sums, err := e.settlementSvc.Reconcile(ctx, c.ID)
	require.NoError(t, err)

	payout := sums[domain.DispositionPayout]
	assert.Equal(t, int64(300_000), payout[0])
	assert.Equal(t, int64(9_000), payout[1])
	assert.Equal(t, int64(291_000), payout[2])

	refund := sums[domain.DispositionRefund]
	assert.Equal(t, int64(200_000), refund[0])
	assert.Zero(t, refund[1])
	assert.Equal(t, int64(200_000), refund[2])
}
