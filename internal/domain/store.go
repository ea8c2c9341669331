package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CampaignStore persists campaigns. Writes to slots and status must only
// happen while holding the campaign-scoped exclusive lock; the store
// itself exposes no guarded path.
type CampaignStore interface {
	Create(ctx context.Context, c Campaign) error
	GetByID(ctx context.Context, id string) (Campaign, error)
	// Update persists FilledSlots, Status, and UpdatedAt for an existing
	// campaign.
	Update(ctx context.Context, c Campaign) error
	// ListExpiring returns campaigns whose deadline has passed that are
	// still in active or locked status. Used only by the sweeper.
	ListExpiring(ctx context.Context, before time.Time) ([]Campaign, error)
	ListByStatus(ctx context.Context, status CampaignStatus, opts ListOpts) ([]Campaign, error)
}

// ParticipantStore persists campaign participants.
type ParticipantStore interface {
	Create(ctx context.Context, p Participant) error
	GetByID(ctx context.Context, id string) (Participant, error)
	// Update persists Status, HoldTxID, and the status timestamps.
	Update(ctx context.Context, p Participant) error
	// Delete removes a participant row. Only legal for a pending_payment
	// participant whose fund hold failed; completed joins are never
	// physically deleted.
	Delete(ctx context.Context, id string) error
	ListByCampaign(ctx context.Context, campaignID string) ([]Participant, error)
	ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses ...ParticipantStatus) ([]Participant, error)
}

// SettlementStore persists terminal settlement records. Create must
// reject a second record for the same (participant, disposition) with
// ErrAlreadyExists; that uniqueness is the settlement idempotency
// guarantee.
type SettlementStore interface {
	Create(ctx context.Context, rec SettlementRecord) error
	GetByParticipant(ctx context.Context, participantID string, d Disposition) (SettlementRecord, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]SettlementRecord, error)
	// SumByCampaign returns the gross, fee, and net totals per
	// disposition for reconciliation.
	SumByCampaign(ctx context.Context, campaignID string, d Disposition) (gross, fee, net int64, err error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]SettlementRecord, error)
}

// AuditEntry is a single immutable audit ledger row.
type AuditEntry struct {
	ID         int64
	CampaignID string
	Event      string
	Metadata   map[string]any
	Actor      string
	CreatedAt  time.Time
}

// AuditStore persists the append-only audit ledger. There is no update
// or delete; the ledger is the source of truth when engine and wallet
// state diverge.
type AuditStore interface {
	Record(ctx context.Context, campaignID, event string, metadata map[string]any, actor string) error
	// ListByCampaign returns entries for a campaign ordered by time
	// descending.
	ListByCampaign(ctx context.Context, campaignID string, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]AuditEntry, error)
}
