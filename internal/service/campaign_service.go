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

// CreateCampaignInput carries the seller-provided fields for a new
// campaign.
type CreateCampaignInput struct {
	ProductID     string
	SellerAccount string
	Title         string
	TotalSlots    int
	MinimumSlots  *int
	SlotPrice     int64
	Deadline      time.Time
}

// CampaignService handles campaign creation and the read path.
type CampaignService struct {
	campaigns    domain.CampaignStore
	participants domain.ParticipantStore
	cache        domain.CampaignCache
	audit        domain.AuditStore
	bus          domain.SignalBus
	logger       *slog.Logger
}

// NewCampaignService creates a CampaignService with all required
// dependencies.
func NewCampaignService(
	campaigns domain.CampaignStore,
	participants domain.ParticipantStore,
	cache domain.CampaignCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns:    campaigns,
		participants: participants,
		cache:        cache,
		audit:        audit,
		bus:          bus,
		logger:       logger.With(slog.String("component", "campaign_service")),
	}
}

func (in CreateCampaignInput) validate() error {
	var errs []string

	if strings.TrimSpace(in.Title) == "" {
		errs = append(errs, "title must not be empty")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		errs = append(errs, "product_id must not be empty")
	}
	if strings.TrimSpace(in.SellerAccount) == "" {
		errs = append(errs, "seller_account must not be empty")
	}
	if in.TotalSlots < 1 {
		errs = append(errs, fmt.Sprintf("total_slots must be >= 1, got %d", in.TotalSlots))
	}
	if in.SlotPrice < 1 {
		errs = append(errs, fmt.Sprintf("slot_price must be >= 1, got %d", in.SlotPrice))
	}
	if in.MinimumSlots != nil && (*in.MinimumSlots < 1 || *in.MinimumSlots > in.TotalSlots) {
		errs = append(errs, fmt.Sprintf("minimum_slots must be between 1 and total_slots, got %d", *in.MinimumSlots))
	}
	if !in.Deadline.After(time.Now()) {
		errs = append(errs, "deadline must be in the future")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// Create validates the input and persists a new draft campaign.
func (s *CampaignService) Create(ctx context.Context, in CreateCampaignInput, actor string) (domain.Campaign, error) {
	if err := in.validate(); err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign_service: create: %w", err)
	}

	now := time.Now().UTC()
	campaign := domain.Campaign{
		ID:            uuid.New().String(),
		ProductID:     in.ProductID,
		SellerAccount: in.SellerAccount,
		Title:         strings.TrimSpace(in.Title),
		TotalSlots:    in.TotalSlots,
		MinimumSlots:  in.MinimumSlots,
		SlotPrice:     in.SlotPrice,
		Deadline:      in.Deadline.UTC(),
		Status:        domain.CampaignStatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign_service: create campaign: %w", err)
	}

	if auditErr := s.audit.Record(ctx, campaign.ID, domain.EventCampaignCreated, map[string]any{
		"product_id":  campaign.ProductID,
		"title":       campaign.Title,
		"total_slots": campaign.TotalSlots,
		"slot_price":  campaign.SlotPrice,
		"deadline":    campaign.Deadline.Format(time.RFC3339),
	}, actor); auditErr != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	publishEvent(ctx, s.bus, s.logger, domain.CampaignEvent{
		Event:       domain.EventCampaignCreated,
		CampaignID:  campaign.ID,
		Status:      campaign.Status,
		FilledSlots: campaign.FilledSlots,
		TotalSlots:  campaign.TotalSlots,
	})

	s.logger.InfoContext(ctx, "campaign created",
		slog.String("campaign_id", campaign.ID),
		slog.String("product_id", campaign.ProductID),
		slog.Int("total_slots", campaign.TotalSlots),
	)

	return campaign, nil
}

// Get returns a campaign, serving from the cache when possible.
func (s *CampaignService) Get(ctx context.Context, id string) (domain.Campaign, error) {
	if cached, err := s.cache.Get(ctx, id); err == nil {
		return cached, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "campaign cache read failed",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()),
		)
	}

	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign_service: get %q: %w", id, err)
	}

	if cacheErr := s.cache.Set(ctx, campaign); cacheErr != nil {
		s.logger.WarnContext(ctx, "campaign cache write failed",
			slog.String("campaign_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}
	return campaign, nil
}

// List returns campaigns in the given status with pagination.
func (s *CampaignService) List(ctx context.Context, status domain.CampaignStatus, opts domain.ListOpts) ([]domain.Campaign, error) {
	campaigns, err := s.campaigns.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("campaign_service: list %q: %w", status, err)
	}
	return campaigns, nil
}

// Participants returns all participants of a campaign.
func (s *CampaignService) Participants(ctx context.Context, campaignID string) ([]domain.Participant, error) {
	if _, err := s.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("campaign_service: participants of %q: %w", campaignID, err)
	}
	list, err := s.participants.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign_service: participants of %q: %w", campaignID, err)
	}
	return list, nil
}

// AuditTrail returns the campaign's audit ledger entries, newest first.
func (s *CampaignService) AuditTrail(ctx context.Context, campaignID string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if _, err := s.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("campaign_service: audit of %q: %w", campaignID, err)
	}
	entries, err := s.audit.ListByCampaign(ctx, campaignID, opts)
	if err != nil {
		return nil, fmt.Errorf("campaign_service: audit of %q: %w", campaignID, err)
	}
	return entries, nil
}
