package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/service"
)

// Joiner defines the reservation method the participant handler
// requires.
type Joiner interface {
	Join(ctx context.Context, in service.JoinInput) (domain.Participant, error)
}

// ParticipantHandler serves the join endpoint.
type ParticipantHandler struct {
	reservations Joiner
	logger       *slog.Logger
}

// NewParticipantHandler creates a ParticipantHandler with the given
// service and logger.
func NewParticipantHandler(reservations Joiner, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		reservations: reservations,
		logger:       logger,
	}
}

// joinRequest is the JSON body for joining a campaign.
type joinRequest struct {
	BuyerID         string `json:"buyer_id"`
	SlotCount       int    `json:"slot_count"`
	ShippingAddress string `json:"shipping_address"`
}

// JoinCampaign reserves slots on a campaign for a buyer and holds the
// contribution in escrow.
// POST /api/campaigns/{id}/join
func (h *ParticipantHandler) JoinCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := pathParam(r, "id")
	if campaignID == "" {
		writeError(w, http.StatusBadRequest, "missing campaign id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	participant, err := h.reservations.Join(r.Context(), service.JoinInput{
		CampaignID:      campaignID,
		BuyerID:         req.BuyerID,
		SlotCount:       req.SlotCount,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: join campaign failed",
			slog.String("campaign_id", campaignID),
			slog.String("buyer_id", req.BuyerID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantResponse(participant))
}
