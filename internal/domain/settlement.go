package domain

import "time"

// Disposition is the terminal financial outcome for a participant.
type Disposition string

const (
	DispositionPayout Disposition = "payout"
	DispositionRefund Disposition = "refund"
)

// SettlementRecord captures one terminal fund movement for a participant.
// At most one record may exist per (participant, disposition); the store
// rejects duplicates so a settlement can never be applied twice.
type SettlementRecord struct {
	ID            string
	CampaignID    string
	ParticipantID string
	Disposition   Disposition
	// GrossAmount is the full held contribution in rupiah.
	GrossAmount int64
	// FeeAmount is the platform fee withheld on payout; zero for refunds.
	FeeAmount int64
	// NetAmount is what actually moved: gross minus fee on payout, the
	// full gross on refund.
	NetAmount int64
	// WalletTxID references the wallet transaction that executed the move.
	WalletTxID string
	CreatedAt  time.Time
}
