package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// Notifier delivers operator alerts on terminal campaign transitions.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// LifecycleService drives campaign state transitions: launch, operator
// cancellation, and deadline resolution. Every transition happens under
// the campaign-scoped lock and lands in the audit ledger.
type LifecycleService struct {
	campaigns    domain.CampaignStore
	participants domain.ParticipantStore
	settlement   *SettlementService
	locks        domain.LockManager
	cache        domain.CampaignCache
	audit        domain.AuditStore
	bus          domain.SignalBus
	notifier     Notifier
	logger       *slog.Logger
	lockTTL      time.Duration
}

// NewLifecycleService creates a LifecycleService with all required
// dependencies. notifier may be nil.
func NewLifecycleService(
	campaigns domain.CampaignStore,
	participants domain.ParticipantStore,
	settlement *SettlementService,
	locks domain.LockManager,
	cache domain.CampaignCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	lockTTL time.Duration,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		campaigns:    campaigns,
		participants: participants,
		settlement:   settlement,
		locks:        locks,
		cache:        cache,
		audit:        audit,
		bus:          bus,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "lifecycle_service")),
		lockTTL:      lockTTL,
	}
}

// Launch opens a draft or scheduled campaign for joins.
func (s *LifecycleService) Launch(ctx context.Context, campaignID, actor string) (domain.Campaign, error) {
	unlock, err := s.locks.Acquire(ctx, campaignLockKey(campaignID), s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Campaign{}, fmt.Errorf("lifecycle_service: campaign %s: %w", campaignID, domain.ErrBusy)
		}
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: acquire lock for %s: %w", campaignID, err)
	}
	defer unlock()

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: get campaign %s: %w", campaignID, err)
	}
	if !campaign.Status.CanTransitionTo(domain.CampaignStatusActive) {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: launch from %s: %w", campaign.Status, domain.ErrInvalidTransition)
	}
	if !campaign.Deadline.After(time.Now()) {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: %w: deadline already passed", domain.ErrValidation)
	}

	campaign.Status = domain.CampaignStatusActive
	campaign.UpdatedAt = time.Now().UTC()
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: update campaign %s: %w", campaignID, err)
	}
	s.invalidate(ctx, campaign.ID)

	s.recordTransition(ctx, campaign, domain.EventCampaignLaunched, map[string]any{
		"deadline": campaign.Deadline.Format(time.RFC3339),
	}, actor)

	s.logger.InfoContext(ctx, "campaign launched",
		slog.String("campaign_id", campaign.ID),
		slog.Time("deadline", campaign.Deadline),
	)

	return campaign, nil
}

// Cancel is the operator kill switch. Every participant holding funds
// is refunded; the campaign only moves to cancelled once all refunds
// have gone through.
func (s *LifecycleService) Cancel(ctx context.Context, campaignID, actor, reason string) (domain.Campaign, error) {
	unlock, err := s.locks.Acquire(ctx, campaignLockKey(campaignID), s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Campaign{}, fmt.Errorf("lifecycle_service: campaign %s: %w", campaignID, domain.ErrBusy)
		}
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: acquire lock for %s: %w", campaignID, err)
	}
	defer unlock()

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: get campaign %s: %w", campaignID, err)
	}
	if !campaign.Status.CanTransitionTo(domain.CampaignStatusCancelled) {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: cancel from %s: %w", campaign.Status, domain.ErrInvalidTransition)
	}

	if reason == "" {
		reason = "operator cancellation"
	}
	if err := s.refundAll(ctx, campaign, reason); err != nil {
		return domain.Campaign{}, err
	}

	campaign.Status = domain.CampaignStatusCancelled
	campaign.UpdatedAt = time.Now().UTC()
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: update campaign %s: %w", campaignID, err)
	}
	s.invalidate(ctx, campaign.ID)

	s.recordTransition(ctx, campaign, domain.EventCampaignCancelled, map[string]any{
		"reason": reason,
	}, actor)
	s.notifyTerminal(ctx, campaign, domain.EventCampaignCancelled, reason)

	s.logger.InfoContext(ctx, "campaign cancelled",
		slog.String("campaign_id", campaign.ID),
		slog.String("reason", reason),
	)

	return campaign, nil
}

// ResolveDeadline settles one overdue campaign: fulfilled with payouts
// when the minimum is met, expired with refunds otherwise. The campaign
// keeps its current status whenever any settlement fails, so the next
// sweep retries only the unfinished participants.
func (s *LifecycleService) ResolveDeadline(ctx context.Context, campaignID string) (domain.Campaign, error) {
	unlock, err := s.locks.Acquire(ctx, campaignLockKey(campaignID), s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Campaign{}, fmt.Errorf("lifecycle_service: campaign %s: %w", campaignID, domain.ErrBusy)
		}
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: acquire lock for %s: %w", campaignID, err)
	}
	defer unlock()

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: get campaign %s: %w", campaignID, err)
	}
	// Another sweeper instance, or an operator cancel, may have gotten
	// here first.
	if campaign.Status.IsTerminal() {
		return campaign, nil
	}
	if campaign.Deadline.After(time.Now()) {
		return campaign, nil
	}

	if campaign.MeetsMinimum() {
		return s.fulfill(ctx, campaign)
	}
	return s.expire(ctx, campaign)
}

func (s *LifecycleService) fulfill(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	participants, err := s.participants.ListByCampaignAndStatus(ctx, campaign.ID, domain.ParticipantStatusConfirmed)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: list participants of %s: %w", campaign.ID, err)
	}

	var firstErr error
	for _, p := range participants {
		if _, releaseErr := s.settlement.ReleaseParticipant(ctx, campaign, p); releaseErr != nil {
			s.logger.ErrorContext(ctx, "release failed during fulfillment",
				slog.String("campaign_id", campaign.ID),
				slog.String("participant_id", p.ID),
				slog.String("error", releaseErr.Error()),
			)
			if firstErr == nil {
				firstErr = releaseErr
			}
		}
	}
	if firstErr != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: fulfill %s: %w", campaign.ID, firstErr)
	}

	campaign.Status = domain.CampaignStatusFulfilled
	campaign.UpdatedAt = time.Now().UTC()
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: update campaign %s: %w", campaign.ID, err)
	}
	s.invalidate(ctx, campaign.ID)

	s.recordTransition(ctx, campaign, domain.EventCampaignFulfilled, map[string]any{
		"filled_slots": campaign.FilledSlots,
		"total_slots":  campaign.TotalSlots,
		"participants": len(participants),
	}, "system")
	s.notifyTerminal(ctx, campaign, domain.EventCampaignFulfilled,
		fmt.Sprintf("%d/%d slots filled", campaign.FilledSlots, campaign.TotalSlots))

	s.logger.InfoContext(ctx, "campaign fulfilled",
		slog.String("campaign_id", campaign.ID),
		slog.Int("participants", len(participants)),
	)

	return campaign, nil
}

func (s *LifecycleService) expire(ctx context.Context, campaign domain.Campaign) (domain.Campaign, error) {
	if err := s.refundAll(ctx, campaign, "deadline passed below minimum"); err != nil {
		return domain.Campaign{}, err
	}

	campaign.Status = domain.CampaignStatusExpired
	campaign.UpdatedAt = time.Now().UTC()
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("lifecycle_service: update campaign %s: %w", campaign.ID, err)
	}
	s.invalidate(ctx, campaign.ID)

	s.recordTransition(ctx, campaign, domain.EventCampaignExpired, map[string]any{
		"filled_slots": campaign.FilledSlots,
		"total_slots":  campaign.TotalSlots,
	}, "system")
	s.notifyTerminal(ctx, campaign, domain.EventCampaignExpired,
		fmt.Sprintf("%d/%d slots filled at deadline", campaign.FilledSlots, campaign.TotalSlots))

	s.logger.InfoContext(ctx, "campaign expired",
		slog.String("campaign_id", campaign.ID),
		slog.Int("filled_slots", campaign.FilledSlots),
	)

	return campaign, nil
}

// refundAll refunds every participant still holding funds, isolating
// per-participant failures so one broken refund does not block the
// rest. Any failure leaves the campaign status untouched for retry.
func (s *LifecycleService) refundAll(ctx context.Context, campaign domain.Campaign, reason string) error {
	participants, err := s.participants.ListByCampaignAndStatus(ctx, campaign.ID,
		domain.ParticipantStatusConfirmed, domain.ParticipantStatusPendingPayment)
	if err != nil {
		return fmt.Errorf("lifecycle_service: list participants of %s: %w", campaign.ID, err)
	}

	var firstErr error
	for _, p := range participants {
		if p.HoldTxID == "" {
			// A pending row without a hold has no funds to move.
			continue
		}
		if _, refundErr := s.settlement.RefundParticipant(ctx, campaign, p, reason); refundErr != nil {
			s.logger.ErrorContext(ctx, "refund failed",
				slog.String("campaign_id", campaign.ID),
				slog.String("participant_id", p.ID),
				slog.String("error", refundErr.Error()),
			)
			if firstErr == nil {
				firstErr = refundErr
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("lifecycle_service: refund all for %s: %w", campaign.ID, firstErr)
	}
	return nil
}

func (s *LifecycleService) invalidate(ctx context.Context, campaignID string) {
	if err := s.cache.Invalidate(ctx, campaignID); err != nil {
		s.logger.WarnContext(ctx, "campaign cache invalidate failed",
			slog.String("campaign_id", campaignID),
			slog.String("error", err.Error()),
		)
	}
}

// recordTransition writes the audit entry and publishes the event for a
// completed status transition.
func (s *LifecycleService) recordTransition(ctx context.Context, campaign domain.Campaign, event string, metadata map[string]any, actor string) {
	if err := s.audit.Record(ctx, campaign.ID, event, metadata, actor); err != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	publishEvent(ctx, s.bus, s.logger, domain.CampaignEvent{
		Event:       event,
		CampaignID:  campaign.ID,
		Status:      campaign.Status,
		FilledSlots: campaign.FilledSlots,
		TotalSlots:  campaign.TotalSlots,
	})
}

// notifyTerminal alerts operators about a terminal transition. Delivery
// failures are logged only.
func (s *LifecycleService) notifyTerminal(ctx context.Context, campaign domain.Campaign, event, detail string) {
	if s.notifier == nil {
		return
	}
	title := fmt.Sprintf("Campaign %s: %s", campaign.Title, campaign.Status)
	message := fmt.Sprintf("Campaign %s (%s) is now %s. %s", campaign.Title, campaign.ID, campaign.Status, detail)
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
