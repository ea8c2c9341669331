package domain

import "time"

// Campaign event names published on the signal bus and recorded in the
// audit ledger.
const (
	EventCampaignCreated   = "campaign_created"
	EventCampaignLaunched  = "campaign_launched"
	EventSlotReserved      = "slot_reserved"
	EventFundsHeld         = "funds_held"
	EventHoldFailed        = "hold_failed"
	EventCampaignLocked    = "campaign_locked"
	EventCampaignFulfilled = "campaign_fulfilled"
	EventCampaignExpired   = "campaign_expired"
	EventCampaignCancelled = "campaign_cancelled"
	EventFundsReleased     = "funds_released"
	EventFundsRefunded     = "funds_refunded"
	EventSettlementFailed  = "settlement_failed"
)

// CampaignEvent is the payload published to the signal bus whenever a
// campaign's observable state changes. The websocket hub fans these out
// to dashboard clients.
type CampaignEvent struct {
	Event         string         `json:"event"`
	CampaignID    string         `json:"campaign_id"`
	ParticipantID string         `json:"participant_id,omitempty"`
	Status        CampaignStatus `json:"status"`
	FilledSlots   int            `json:"filled_slots"`
	TotalSlots    int            `json:"total_slots"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
