// Package pipeline runs the engine's background loops: the deadline
// sweeper and the cold-storage archiver.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// sweepLeaderKey is the global leader lock key. Only one sweeper
// instance across the deployment resolves deadlines per tick.
const sweepLeaderKey = "sweeper"

// Resolver settles one overdue campaign.
type Resolver interface {
	ResolveDeadline(ctx context.Context, campaignID string) (domain.Campaign, error)
}

// Sweeper periodically finds campaigns whose deadline has passed and
// resolves each one. Resolution is idempotent, so overlapping sweeps
// and crash-retries are safe.
type Sweeper struct {
	campaigns domain.CampaignStore
	resolver  Resolver
	locks     domain.LockManager
	interval  time.Duration
	leaderTTL time.Duration
	logger    *slog.Logger
}

// NewSweeper creates a Sweeper with all required dependencies.
func NewSweeper(
	campaigns domain.CampaignStore,
	resolver Resolver,
	locks domain.LockManager,
	interval time.Duration,
	leaderTTL time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		campaigns: campaigns,
		resolver:  resolver,
		locks:     locks,
		interval:  interval,
		leaderTTL: leaderTTL,
		logger:    logger.With(slog.String("component", "sweeper")),
	}
}

// RunLoop sweeps once immediately, then on every tick until the context
// is cancelled.
func (s *Sweeper) RunLoop(ctx context.Context) error {
	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))

	if err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep performs one pass: take the leader lock, list overdue
// campaigns, and resolve each in turn. When another instance holds the
// leader lock the tick is skipped; its sweep covers the same work.
func (s *Sweeper) Sweep(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, sweepLeaderKey, s.leaderTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Debug("another sweeper holds the leader lock, skipping tick")
			return nil
		}
		return fmt.Errorf("sweeper: acquire leader lock: %w", err)
	}
	defer unlock()

	overdue, err := s.campaigns.ListExpiring(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweeper: list expiring campaigns: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	s.logger.Info("sweeping overdue campaigns", slog.Int("count", len(overdue)))

	var resolved, failed int
	for _, campaign := range overdue {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// One stuck campaign must not block the rest of the sweep.
		result, resolveErr := s.resolver.ResolveDeadline(ctx, campaign.ID)
		if resolveErr != nil {
			failed++
			s.logger.Error("resolve failed",
				slog.String("campaign_id", campaign.ID),
				slog.String("error", resolveErr.Error()),
			)
			continue
		}
		resolved++
		s.logger.Info("campaign resolved",
			slog.String("campaign_id", campaign.ID),
			slog.String("status", string(result.Status)),
		)
	}

	s.logger.Info("sweep complete",
		slog.Int("resolved", resolved),
		slog.Int("failed", failed),
	)
	return nil
}
