package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lokapasar/sambatan/internal/domain"
)

// ReservationConfig tunes the join path's lock and rate limit
// behaviour.
type ReservationConfig struct {
	LockTTL        time.Duration
	LockRetries    int
	LockBackoff    time.Duration
	JoinRateLimit  int
	JoinRateWindow time.Duration
}

// JoinInput carries one buyer's claim on a campaign.
type JoinInput struct {
	CampaignID      string
	BuyerID         string
	SlotCount       int
	ShippingAddress string
}

// ReservationService handles the join path: slot reservation under
// contention plus the fund hold that confirms it. All campaign slot
// and status writes happen inside the campaign-scoped lock.
type ReservationService struct {
	campaigns    domain.CampaignStore
	participants domain.ParticipantStore
	wallet       domain.WalletClient
	locks        domain.LockManager
	limiter      domain.RateLimiter
	cache        domain.CampaignCache
	audit        domain.AuditStore
	bus          domain.SignalBus
	logger       *slog.Logger
	cfg          ReservationConfig
}

// NewReservationService creates a ReservationService with all required
// dependencies.
func NewReservationService(
	campaigns domain.CampaignStore,
	participants domain.ParticipantStore,
	wallet domain.WalletClient,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	cache domain.CampaignCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	cfg ReservationConfig,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		campaigns:    campaigns,
		participants: participants,
		wallet:       wallet,
		locks:        locks,
		limiter:      limiter,
		cache:        cache,
		audit:        audit,
		bus:          bus,
		logger:       logger.With(slog.String("component", "reservation_service")),
		cfg:          cfg,
	}
}

func campaignLockKey(campaignID string) string {
	return "campaign:" + campaignID
}

// acquireCampaignLock takes the campaign's exclusive lock with bounded
// exponential backoff. After the retry budget is spent it surfaces
// domain.ErrBusy so the caller can tell the buyer to retry.
func (s *ReservationService) acquireCampaignLock(ctx context.Context, campaignID string) (func(), error) {
	backoff := s.cfg.LockBackoff
	for attempt := 0; ; attempt++ {
		unlock, err := s.locks.Acquire(ctx, campaignLockKey(campaignID), s.cfg.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		if attempt >= s.cfg.LockRetries {
			return nil, domain.ErrBusy
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (in JoinInput) validate() error {
	var errs []string

	if strings.TrimSpace(in.CampaignID) == "" {
		errs = append(errs, "campaign_id must not be empty")
	}
	if strings.TrimSpace(in.BuyerID) == "" {
		errs = append(errs, "buyer_id must not be empty")
	}
	if in.SlotCount < 1 {
		errs = append(errs, fmt.Sprintf("slot_count must be >= 1, got %d", in.SlotCount))
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		errs = append(errs, "shipping_address must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// Join reserves slots on an active campaign for one buyer and holds the
// contribution in escrow. Slots still open when the lock is acquired go
// to this buyer; a full or non-active campaign rejects the join without
// touching funds.
func (s *ReservationService) Join(ctx context.Context, in JoinInput) (domain.Participant, error) {
	if err := in.validate(); err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: join: %w", err)
	}

	allowed, err := s.limiter.Allow(ctx, "join:"+in.BuyerID, s.cfg.JoinRateLimit, s.cfg.JoinRateWindow)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.Participant{}, domain.ErrRateLimited
	}

	unlock, err := s.acquireCampaignLock(ctx, in.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			return domain.Participant{}, fmt.Errorf("reservation_service: campaign %s: %w", in.CampaignID, domain.ErrBusy)
		}
		return domain.Participant{}, fmt.Errorf("reservation_service: acquire lock for %s: %w", in.CampaignID, err)
	}
	defer unlock()

	campaign, err := s.campaigns.GetByID(ctx, in.CampaignID)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: get campaign %s: %w", in.CampaignID, err)
	}

	if campaign.Status != domain.CampaignStatusActive {
		return domain.Participant{}, fmt.Errorf("reservation_service: campaign %s is %s: %w",
			campaign.ID, campaign.Status, domain.ErrCampaignNotActive)
	}
	// The sweeper may not have visited yet; an overdue campaign is
	// closed to joins regardless.
	if !campaign.Deadline.After(time.Now()) {
		return domain.Participant{}, fmt.Errorf("reservation_service: campaign %s deadline passed: %w",
			campaign.ID, domain.ErrCampaignNotActive)
	}
	if campaign.RemainingSlots() < in.SlotCount {
		return domain.Participant{}, fmt.Errorf("reservation_service: campaign %s has %d slots left, wanted %d: %w",
			campaign.ID, campaign.RemainingSlots(), in.SlotCount, domain.ErrSlotsExhausted)
	}

	now := time.Now().UTC()
	participant := domain.Participant{
		ID:                 uuid.New().String(),
		CampaignID:         campaign.ID,
		BuyerID:            in.BuyerID,
		SlotCount:          in.SlotCount,
		ContributionAmount: int64(in.SlotCount) * campaign.SlotPrice,
		ShippingAddress:    strings.TrimSpace(in.ShippingAddress),
		Status:             domain.ParticipantStatusPendingPayment,
		JoinedAt:           now,
	}

	if err := s.participants.Create(ctx, participant); err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: create participant: %w", err)
	}

	// The participant ID doubles as the hold idempotency key; a wallet
	// retry after a network blip cannot double-hold.
	holdTx, holdErr := s.wallet.HoldFunds(ctx, in.BuyerID, participant.ContributionAmount, participant.ID)
	if holdErr != nil {
		// The join never happened: drop the pending row so it does not
		// occupy slots, and leave the failure in the ledger.
		if delErr := s.participants.Delete(ctx, participant.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "rollback of pending participant failed",
				slog.String("participant_id", participant.ID),
				slog.String("error", delErr.Error()),
			)
		}
		if auditErr := s.audit.Record(ctx, campaign.ID, domain.EventHoldFailed, map[string]any{
			"buyer_id":   in.BuyerID,
			"slot_count": in.SlotCount,
			"amount":     participant.ContributionAmount,
			"error":      holdErr.Error(),
		}, in.BuyerID); auditErr != nil {
			s.logger.WarnContext(ctx, "audit record failed",
				slog.String("campaign_id", campaign.ID),
				slog.String("error", auditErr.Error()),
			)
		}
		return domain.Participant{}, fmt.Errorf("reservation_service: hold funds: %w", holdErr)
	}

	participant.Status = domain.ParticipantStatusConfirmed
	participant.HoldTxID = holdTx
	participant.ConfirmedAt = &now
	if err := s.participants.Update(ctx, participant); err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: confirm participant %s: %w", participant.ID, err)
	}

	campaign.FilledSlots += in.SlotCount
	campaign.UpdatedAt = now
	filledToCapacity := campaign.FilledSlots == campaign.TotalSlots
	if filledToCapacity {
		campaign.Status = domain.CampaignStatusLocked
	}
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return domain.Participant{}, fmt.Errorf("reservation_service: update campaign %s: %w", campaign.ID, err)
	}

	if cacheErr := s.cache.Invalidate(ctx, campaign.ID); cacheErr != nil {
		s.logger.WarnContext(ctx, "campaign cache invalidate failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", cacheErr.Error()),
		)
	}

	s.recordJoin(ctx, campaign, participant, holdTx)

	publishEvent(ctx, s.bus, s.logger, domain.CampaignEvent{
		Event:         domain.EventSlotReserved,
		CampaignID:    campaign.ID,
		ParticipantID: participant.ID,
		Status:        campaign.Status,
		FilledSlots:   campaign.FilledSlots,
		TotalSlots:    campaign.TotalSlots,
	})
	if filledToCapacity {
		publishEvent(ctx, s.bus, s.logger, domain.CampaignEvent{
			Event:       domain.EventCampaignLocked,
			CampaignID:  campaign.ID,
			Status:      campaign.Status,
			FilledSlots: campaign.FilledSlots,
			TotalSlots:  campaign.TotalSlots,
		})
	}

	s.logger.InfoContext(ctx, "slot reserved",
		slog.String("campaign_id", campaign.ID),
		slog.String("participant_id", participant.ID),
		slog.Int("slot_count", in.SlotCount),
		slog.Int("filled_slots", campaign.FilledSlots),
		slog.Bool("locked", filledToCapacity),
	)

	return participant, nil
}

// recordJoin writes the slot_reserved and funds_held ledger entries,
// plus campaign_locked when this join filled the last slot.
func (s *ReservationService) recordJoin(ctx context.Context, campaign domain.Campaign, p domain.Participant, holdTx string) {
	entries := []struct {
		event string
		meta  map[string]any
	}{
		{domain.EventSlotReserved, map[string]any{
			"participant_id": p.ID,
			"buyer_id":       p.BuyerID,
			"slot_count":     p.SlotCount,
			"filled_slots":   campaign.FilledSlots,
		}},
		{domain.EventFundsHeld, map[string]any{
			"participant_id": p.ID,
			"amount":         p.ContributionAmount,
			"wallet_tx_id":   holdTx,
		}},
	}
	if campaign.Status == domain.CampaignStatusLocked {
		entries = append(entries, struct {
			event string
			meta  map[string]any
		}{domain.EventCampaignLocked, map[string]any{
			"filled_slots": campaign.FilledSlots,
			"total_slots":  campaign.TotalSlots,
		}})
	}

	for _, e := range entries {
		if err := s.audit.Record(ctx, campaign.ID, e.event, e.meta, p.BuyerID); err != nil {
			s.logger.WarnContext(ctx, "audit record failed",
				slog.String("campaign_id", campaign.ID),
				slog.String("event", e.event),
				slog.String("error", err.Error()),
			)
		}
	}
}
