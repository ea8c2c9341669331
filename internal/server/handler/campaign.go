package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/service"
)

// CampaignReader defines the read-path methods the campaign handler
// requires from the service layer. It is declared locally so the
// handler package does not depend on the concrete service
// implementation.
type CampaignReader interface {
	Create(ctx context.Context, in service.CreateCampaignInput, actor string) (domain.Campaign, error)
	Get(ctx context.Context, id string) (domain.Campaign, error)
	List(ctx context.Context, status domain.CampaignStatus, opts domain.ListOpts) ([]domain.Campaign, error)
	Participants(ctx context.Context, campaignID string) ([]domain.Participant, error)
	AuditTrail(ctx context.Context, campaignID string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// LifecycleDriver defines the transition methods the campaign handler
// requires.
type LifecycleDriver interface {
	Launch(ctx context.Context, campaignID, actor string) (domain.Campaign, error)
	Cancel(ctx context.Context, campaignID, actor, reason string) (domain.Campaign, error)
}

// CampaignHandler serves campaign-related HTTP endpoints.
type CampaignHandler struct {
	campaigns CampaignReader
	lifecycle LifecycleDriver
	logger    *slog.Logger
}

// NewCampaignHandler creates a CampaignHandler with the given services
// and logger.
func NewCampaignHandler(campaigns CampaignReader, lifecycle LifecycleDriver, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// campaignResponse is the JSON view of a campaign.
type campaignResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	SellerAccount  string    `json:"seller_account"`
	Title          string    `json:"title"`
	TotalSlots     int       `json:"total_slots"`
	FilledSlots    int       `json:"filled_slots"`
	RemainingSlots int       `json:"remaining_slots"`
	MinimumSlots   *int      `json:"minimum_slots,omitempty"`
	SlotPrice      int64     `json:"slot_price"`
	Progress       float64   `json:"progress"`
	Deadline       time.Time `json:"deadline"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCampaignResponse(c domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:             c.ID,
		ProductID:      c.ProductID,
		SellerAccount:  c.SellerAccount,
		Title:          c.Title,
		TotalSlots:     c.TotalSlots,
		FilledSlots:    c.FilledSlots,
		RemainingSlots: c.RemainingSlots(),
		MinimumSlots:   c.MinimumSlots,
		SlotPrice:      c.SlotPrice,
		Progress:       c.Progress(),
		Deadline:       c.Deadline,
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// createCampaignRequest is the JSON body for campaign creation.
type createCampaignRequest struct {
	ProductID     string    `json:"product_id"`
	SellerAccount string    `json:"seller_account"`
	Title         string    `json:"title"`
	TotalSlots    int       `json:"total_slots"`
	MinimumSlots  *int      `json:"minimum_slots"`
	SlotPrice     int64     `json:"slot_price"`
	Deadline      time.Time `json:"deadline"`
}

// CreateCampaign creates a new draft campaign.
// POST /api/campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	campaign, err := h.campaigns.Create(r.Context(), service.CreateCampaignInput{
		ProductID:     req.ProductID,
		SellerAccount: req.SellerAccount,
		Title:         req.Title,
		TotalSlots:    req.TotalSlots,
		MinimumSlots:  req.MinimumSlots,
		SlotPrice:     req.SlotPrice,
		Deadline:      req.Deadline,
	}, actor(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: create campaign failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCampaignResponse(campaign))
}

// LaunchCampaign opens a draft campaign for joins.
// POST /api/campaigns/{id}/launch
func (h *CampaignHandler) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	campaign, err := h.lifecycle.Launch(r.Context(), id, actor(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: launch campaign failed",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

// cancelCampaignRequest is the optional JSON body for cancellation.
type cancelCampaignRequest struct {
	Reason string `json:"reason"`
}

// CancelCampaign is the operator kill switch: refund everyone, then
// close the campaign.
// POST /api/campaigns/{id}/cancel
func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	var req cancelCampaignRequest
	// The body is optional; a missing reason gets a default downstream.
	_ = json.NewDecoder(r.Body).Decode(&req)

	campaign, err := h.lifecycle.Cancel(r.Context(), id, actor(r), req.Reason)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: cancel campaign failed",
			slog.String("campaign_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

// GetCampaign returns a single campaign by its ID.
// GET /api/campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	campaign, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCampaignResponse(campaign))
}

// listCampaignsResponse wraps the list endpoint output with metadata.
type listCampaignsResponse struct {
	Campaigns []campaignResponse `json:"campaigns"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ListCampaigns returns campaigns filtered by status with pagination.
// GET /api/campaigns?status=active&limit=50&offset=0
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	status := domain.CampaignStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.CampaignStatusActive
	}

	campaigns, err := h.campaigns.List(r.Context(), status, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list campaigns failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	out := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}

	writeJSON(w, http.StatusOK, listCampaignsResponse{
		Campaigns: out,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// participantResponse is the JSON view of a participant.
type participantResponse struct {
	ID                 string     `json:"id"`
	CampaignID         string     `json:"campaign_id"`
	BuyerID            string     `json:"buyer_id"`
	SlotCount          int        `json:"slot_count"`
	ContributionAmount int64      `json:"contribution_amount"`
	ShippingAddress    string     `json:"shipping_address"`
	Status             string     `json:"status"`
	JoinedAt           time.Time  `json:"joined_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

func toParticipantResponse(p domain.Participant) participantResponse {
	return participantResponse{
		ID:                 p.ID,
		CampaignID:         p.CampaignID,
		BuyerID:            p.BuyerID,
		SlotCount:          p.SlotCount,
		ContributionAmount: p.ContributionAmount,
		ShippingAddress:    p.ShippingAddress,
		Status:             string(p.Status),
		JoinedAt:           p.JoinedAt,
		ConfirmedAt:        p.ConfirmedAt,
		CancelledAt:        p.CancelledAt,
	}
}

// ListParticipants returns all participants of a campaign.
// GET /api/campaigns/{id}/participants
func (h *CampaignHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	participants, err := h.campaigns.Participants(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, toParticipantResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": out})
}

// auditEntryResponse is the JSON view of one audit ledger entry.
type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Actor     string         `json:"actor"`
	CreatedAt time.Time      `json:"created_at"`
}

// GetAuditTrail returns the campaign's audit ledger, newest first.
// GET /api/campaigns/{id}/audit
func (h *CampaignHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	entries, err := h.campaigns.AuditTrail(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			Metadata:  e.Metadata,
			Actor:     e.Actor,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
