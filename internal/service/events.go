// Package service implements the group-buy engine: campaign lifecycle,
// slot reservation, and escrow settlement.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

const (
	// EventChannel is the pub/sub channel for live campaign events.
	EventChannel = "campaigns"
	// EventStream is the durable stream holding replayable event history.
	EventStream = "campaigns:events"
)

// publishEvent sends a campaign event on the signal bus: pub/sub for
// live listeners and a stream append for replay. Publish failures are
// logged, never surfaced; the audit ledger is the durable record.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, evt domain.CampaignEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		logger.WarnContext(ctx, "marshal campaign event failed",
			slog.String("event", evt.Event),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := bus.Publish(ctx, EventChannel, payload); err != nil {
		logger.WarnContext(ctx, "publish campaign event failed",
			slog.String("event", evt.Event),
			slog.String("campaign_id", evt.CampaignID),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, EventStream, payload); err != nil {
		logger.WarnContext(ctx, "stream append campaign event failed",
			slog.String("event", evt.Event),
			slog.String("campaign_id", evt.CampaignID),
			slog.String("error", err.Error()),
		)
	}
}
