package domain

import "time"

// ParticipantStatus represents the state of one buyer's claim on a
// campaign.
type ParticipantStatus string

const (
	ParticipantStatusPendingPayment ParticipantStatus = "pending_payment"
	ParticipantStatusConfirmed      ParticipantStatus = "confirmed"
	ParticipantStatusCancelled      ParticipantStatus = "cancelled"
	ParticipantStatusRefunded       ParticipantStatus = "refunded"
	ParticipantStatusFulfilled      ParticipantStatus = "fulfilled"
)

// CountsTowardFill reports whether a participant in this status occupies
// slots. FilledSlots on the campaign must always equal the sum of
// SlotCount over participants in a counting status.
func (s ParticipantStatus) CountsTowardFill() bool {
	return s == ParticipantStatusPendingPayment || s == ParticipantStatusConfirmed
}

// Participant is one buyer's claim on a campaign. The contribution is
// frozen at join time; later slot-price changes never affect it.
type Participant struct {
	ID         string
	CampaignID string
	BuyerID    string
	SlotCount  int
	// ContributionAmount is SlotCount * SlotPrice at join time, in rupiah.
	ContributionAmount int64
	ShippingAddress    string
	Status             ParticipantStatus
	// HoldTxID references the wallet hold transaction once funds are held.
	HoldTxID    string
	JoinedAt    time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
}
