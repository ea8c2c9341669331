package domain

import "time"

// CampaignStatus represents the lifecycle state of a group-buy campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusLocked    CampaignStatus = "locked"
	CampaignStatusFulfilled CampaignStatus = "fulfilled"
	CampaignStatusExpired   CampaignStatus = "expired"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// transitions is the legal state graph. A campaign may only move along
// these edges; fulfilled, expired, and cancelled are terminal.
var transitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusScheduled: {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive:    {CampaignStatusLocked, CampaignStatusExpired, CampaignStatusFulfilled, CampaignStatusCancelled},
	CampaignStatusLocked:    {CampaignStatusExpired, CampaignStatusFulfilled, CampaignStatusCancelled},
}

// IsTerminal reports whether no further transitions are permitted out of
// the status.
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case CampaignStatusFulfilled, CampaignStatusExpired, CampaignStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state graph permits moving from s
// to target.
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Campaign is one group-buy batch tied to a single product. Buyers claim
// slots until TotalSlots is reached or the deadline passes. All slot and
// status mutations happen under the campaign-scoped exclusive lock.
type Campaign struct {
	ID            string
	ProductID     string
	SellerAccount string
	Title         string
	TotalSlots    int
	FilledSlots   int
	// MinimumSlots is the floor below which the campaign expires at its
	// deadline. nil means no floor: any participation fulfills.
	MinimumSlots *int
	// SlotPrice is the price of one slot in rupiah.
	SlotPrice int64
	Deadline  time.Time
	Status    CampaignStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress returns the fill ratio in [0, 1].
func (c Campaign) Progress() float64 {
	if c.TotalSlots == 0 {
		return 0
	}
	return float64(c.FilledSlots) / float64(c.TotalSlots)
}

// RemainingSlots returns the number of unclaimed slots.
func (c Campaign) RemainingSlots() int {
	return c.TotalSlots - c.FilledSlots
}

// MeetsMinimum reports whether the campaign has enough confirmed slots
// to be fulfilled at its deadline. With no minimum configured, a single
// filled slot is enough.
func (c Campaign) MeetsMinimum() bool {
	if c.MinimumSlots == nil {
		return c.FilledSlots > 0
	}
	return c.FilledSlots >= *c.MinimumSlots
}
