package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
)

func validCreateInput() CreateCampaignInput {
	return CreateCampaignInput{
		ProductID:     "prod-1",
		SellerAccount: "seller",
		Title:         "Kopi arabika 1kg",
		TotalSlots:    20,
		SlotPrice:     85_000,
		Deadline:      time.Now().Add(48 * time.Hour),
	}
}

func TestCreateCampaignStartsAsDraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	c, err := e.campaignSvc.Create(ctx, validCreateInput(), "operator-1")
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.CampaignStatusDraft, c.Status)
	assert.Zero(t, c.FilledSlots)

	stored, err := e.campaigns.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)

	assert.Contains(t, e.auditEvents(t, c.ID), domain.EventCampaignCreated)
}

func TestCreateCampaignValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	cases := map[string]func(*CreateCampaignInput){
		"empty title":          func(in *CreateCampaignInput) { in.Title = "  " },
		"empty product":        func(in *CreateCampaignInput) { in.ProductID = "" },
		"empty seller":         func(in *CreateCampaignInput) { in.SellerAccount = "" },
		"zero slots":           func(in *CreateCampaignInput) { in.TotalSlots = 0 },
		"zero price":           func(in *CreateCampaignInput) { in.SlotPrice = 0 },
		"minimum above total":  func(in *CreateCampaignInput) { in.MinimumSlots = intPtr(21) },
		"zero minimum":         func(in *CreateCampaignInput) { in.MinimumSlots = intPtr(0) },
		"deadline in the past": func(in *CreateCampaignInput) { in.Deadline = time.Now().Add(-time.Minute) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validCreateInput()
			mutate(&in)
			_, err := e.campaignSvc.Create(ctx, in, "operator-1")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestGetServesFromCacheAfterFirstRead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 50_000, time.Now().Add(time.Hour))

	first, err := e.campaignSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, first.ID)

	// The snapshot is now cached; a store-only change is invisible
	// until invalidation.
	stale := first
	stale.FilledSlots = 7
	require.NoError(t, e.campaigns.Update(ctx, stale))

	cached, err := e.campaignSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, cached.FilledSlots)

	require.NoError(t, e.cache.Invalidate(ctx, c.ID))
	fresh, err := e.campaignSvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, fresh.FilledSlots)
}

func TestGetUnknownCampaign(t *testing.T) {
	e := newEnv(t)
	_, err := e.campaignSvc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	active := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 50_000, time.Now().Add(time.Hour))
	e.seedCampaign(t, domain.CampaignStatusDraft, 10, nil, 50_000, time.Now().Add(time.Hour))

	campaigns, err := e.campaignSvc.List(ctx, domain.CampaignStatusActive, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, active.ID, campaigns[0].ID)
}

func TestAuditTrailIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	c := e.seedCampaign(t, domain.CampaignStatusActive, 10, nil, 50_000, time.Now().Add(time.Hour))

	require.NoError(t, e.audit.Record(ctx, c.ID, "first", nil, "system"))
	require.NoError(t, e.audit.Record(ctx, c.ID, "second", nil, "system"))

	entries, err := e.campaignSvc.AuditTrail(ctx, c.ID, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Event)
	assert.Equal(t, "first", entries[1].Event)
}
