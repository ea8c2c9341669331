package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/platform/wallet"
	"github.com/lokapasar/sambatan/internal/store/memory"
)

// env is a fully wired in-memory engine for service tests.
type env struct {
	campaigns    *memory.CampaignStore
	participants *memory.ParticipantStore
	settlements  *memory.SettlementStore
	audit        *memory.AuditStore
	locks        *memory.LockManager
	limiter      *memory.RateLimiter
	cache        *memory.CampaignCache
	bus          *memory.SignalBus
	wallet       *wallet.Memory

	campaignSvc    *CampaignService
	reservationSvc *ReservationService
	settlementSvc  *SettlementService
	lifecycleSvc   *LifecycleService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		campaigns:    memory.NewCampaignStore(),
		participants: memory.NewParticipantStore(),
		settlements:  memory.NewSettlementStore(),
		audit:        memory.NewAuditStore(),
		locks:        memory.NewLockManager(),
		limiter:      memory.NewRateLimiter(),
		cache:        memory.NewCampaignCache(),
		bus:          memory.NewSignalBus(),
		wallet:       wallet.NewMemory(),
	}

	logger := testLogger()
	e.campaignSvc = NewCampaignService(e.campaigns, e.participants, e.cache, e.audit, e.bus, logger)
	e.settlementSvc = NewSettlementService(e.participants, e.settlements, e.wallet, e.audit, e.bus, 0.03, logger)
	e.reservationSvc = NewReservationService(
		e.campaigns, e.participants, e.wallet, e.locks, e.limiter, e.cache, e.audit, e.bus,
		ReservationConfig{
			LockTTL:        time.Second,
			LockRetries:    50,
			LockBackoff:    time.Millisecond,
			JoinRateLimit:  1000,
			JoinRateWindow: time.Minute,
		},
		logger,
	)
	e.lifecycleSvc = NewLifecycleService(
		e.campaigns, e.participants, e.settlementSvc, e.locks, e.cache, e.audit, e.bus,
		nil, time.Second, logger,
	)
	return e
}

// seedCampaign inserts a campaign directly into the store, bypassing
// the draft flow, so tests can start from any status.
func (e *env) seedCampaign(t *testing.T, status domain.CampaignStatus, totalSlots int, minimumSlots *int, slotPrice int64, deadline time.Time) domain.Campaign {
	t.Helper()

	now := time.Now().UTC()
	c := domain.Campaign{
		ID:            uuid.New().String(),
		ProductID:     "prod-1",
		SellerAccount: "seller",
		Title:         "Beras premium 5kg",
		TotalSlots:    totalSlots,
		MinimumSlots:  minimumSlots,
		SlotPrice:     slotPrice,
		Deadline:      deadline,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.campaigns.Create(context.Background(), c))
	return c
}

// join credits the buyer with exactly the contribution and joins.
func (e *env) join(t *testing.T, campaignID, buyerID string, slotCount int, slotPrice int64) domain.Participant {
	t.Helper()

	e.wallet.Credit(buyerID, int64(slotCount)*slotPrice)
	p, err := e.reservationSvc.Join(context.Background(), JoinInput{
		CampaignID:      campaignID,
		BuyerID:         buyerID,
		SlotCount:       slotCount,
		ShippingAddress: "Jl. Merdeka 1, Bandung",
	})
	require.NoError(t, err)
	return p
}

// auditEvents returns the recorded event names for a campaign, oldest
// first.
func (e *env) auditEvents(t *testing.T, campaignID string) []string {
	t.Helper()

	entries, err := e.audit.ListByCampaign(context.Background(), campaignID, domain.ListOpts{Limit: 1000})
	require.NoError(t, err)

	events := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		events = append(events, entries[i].Event)
	}
	return events
}

func intPtr(n int) *int { return &n }
