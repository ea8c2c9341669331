package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusCanTransitionTo(t *testing.T) {
	allowed := []struct {
		from, to CampaignStatus
	}{
		{CampaignStatusDraft, CampaignStatusScheduled},
		{CampaignStatusDraft, CampaignStatusActive},
		{CampaignStatusDraft, CampaignStatusCancelled},
		{CampaignStatusScheduled, CampaignStatusActive},
		{CampaignStatusScheduled, CampaignStatusCancelled},
		{CampaignStatusActive, CampaignStatusLocked},
		{CampaignStatusActive, CampaignStatusExpired},
		{CampaignStatusActive, CampaignStatusFulfilled},
		{CampaignStatusActive, CampaignStatusCancelled},
		{CampaignStatusLocked, CampaignStatusExpired},
		{CampaignStatusLocked, CampaignStatusFulfilled},
		{CampaignStatusLocked, CampaignStatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to CampaignStatus
	}{
		{CampaignStatusDraft, CampaignStatusLocked},
		{CampaignStatusDraft, CampaignStatusFulfilled},
		{CampaignStatusScheduled, CampaignStatusLocked},
		{CampaignStatusActive, CampaignStatusDraft},
		{CampaignStatusLocked, CampaignStatusActive},
		{CampaignStatusFulfilled, CampaignStatusCancelled},
		{CampaignStatusExpired, CampaignStatusActive},
		{CampaignStatusCancelled, CampaignStatusActive},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestCampaignStatusIsTerminal(t *testing.T) {
	for _, s := range []CampaignStatus{CampaignStatusFulfilled, CampaignStatusExpired, CampaignStatusCancelled} {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)

		// No outgoing edges from a terminal status.
		for _, target := range []CampaignStatus{
			CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusActive,
			CampaignStatusLocked, CampaignStatusFulfilled, CampaignStatusExpired,
			CampaignStatusCancelled,
		} {
			assert.False(t, s.CanTransitionTo(target), "%s -> %s should be denied", s, target)
		}
	}

	for _, s := range []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusActive, CampaignStatusLocked} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestCampaignMeetsMinimum(t *testing.T) {
	min := func(n int) *int { return &n }

	t.Run("no minimum needs at least one slot", func(t *testing.T) {
		c := Campaign{TotalSlots: 10, FilledSlots: 0}
		assert.False(t, c.MeetsMinimum())

		c.FilledSlots = 1
		assert.True(t, c.MeetsMinimum())
	})

	t.Run("minimum is a hard floor", func(t *testing.T) {
		c := Campaign{TotalSlots: 10, MinimumSlots: min(5), FilledSlots: 4}
		assert.False(t, c.MeetsMinimum())

		c.FilledSlots = 5
		assert.True(t, c.MeetsMinimum())

		c.FilledSlots = 10
		assert.True(t, c.MeetsMinimum())
	})
}

func TestCampaignProgress(t *testing.T) {
	c := Campaign{TotalSlots: 8, FilledSlots: 2}
	assert.InDelta(t, 0.25, c.Progress(), 1e-9)
	assert.Equal(t, 6, c.RemainingSlots())

	empty := Campaign{}
	assert.Zero(t, empty.Progress())
}

func TestParticipantStatusCountsTowardFill(t *testing.T) {
	assert.True(t, ParticipantStatusPendingPayment.CountsTowardFill())
	assert.True(t, ParticipantStatusConfirmed.CountsTowardFill())
	assert.False(t, ParticipantStatusCancelled.CountsTowardFill())
	assert.False(t, ParticipantStatusRefunded.CountsTowardFill())
	assert.False(t, ParticipantStatusFulfilled.CountsTowardFill())
}
