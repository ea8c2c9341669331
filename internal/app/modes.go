package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokapasar/sambatan/internal/pipeline"
	"github.com/lokapasar/sambatan/internal/server"
	"github.com/lokapasar/sambatan/internal/server/handler"
	"github.com/lokapasar/sambatan/internal/server/ws"
	"github.com/lokapasar/sambatan/internal/service"
)

// services bundles the domain services shared by the HTTP API and the
// deadline sweeper.
type services struct {
	campaigns    *service.CampaignService
	reservations *service.ReservationService
	settlement   *service.SettlementService
	lifecycle    *service.LifecycleService
}

func (a *App) buildServices(deps *Dependencies) *services {
	settlementSvc := service.NewSettlementService(
		deps.ParticipantStore, deps.SettlementStore, deps.Wallet,
		deps.AuditStore, deps.SignalBus, a.cfg.Engine.FeeRate, a.logger,
	)
	return &services{
		campaigns: service.NewCampaignService(
			deps.CampaignStore, deps.ParticipantStore, deps.CampaignCache,
			deps.AuditStore, deps.SignalBus, a.logger,
		),
		reservations: service.NewReservationService(
			deps.CampaignStore, deps.ParticipantStore, deps.Wallet,
			deps.LockManager, deps.RateLimiter, deps.CampaignCache,
			deps.AuditStore, deps.SignalBus,
			service.ReservationConfig{
				LockTTL:        a.cfg.Engine.LockTTL.Duration,
				LockRetries:    a.cfg.Engine.LockRetries,
				LockBackoff:    a.cfg.Engine.LockBackoff.Duration,
				JoinRateLimit:  a.cfg.Engine.JoinRateLimit,
				JoinRateWindow: a.cfg.Engine.JoinRateWindow.Duration,
			},
			a.logger,
		),
		settlement: settlementSvc,
		lifecycle: service.NewLifecycleService(
			deps.CampaignStore, deps.ParticipantStore, settlementSvc,
			deps.LockManager, deps.CampaignCache, deps.AuditStore,
			deps.SignalBus, deps.Notifier, a.cfg.Engine.LockTTL.Duration,
			a.logger,
		),
	}
}

// ServerMode runs the HTTP API and the WebSocket hub. Deadlines are not
// resolved in this mode; pair it with a sweep-mode process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svcs := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svcs)

	return g.Wait()
}

// SweepMode runs the deadline sweeper and, when archival is enabled, the
// cold-storage archiver. No HTTP API is exposed.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sweep mode")

	svcs := a.buildServices(deps)
	orch := a.buildOrchestrator(deps, svcs)

	return orch.Run(ctx)
}

// FullMode runs everything in one process: HTTP API, WebSocket hub,
// deadline sweeper, and archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svcs := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildOrchestrator(deps, svcs)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	a.startServer(ctx, g, deps, svcs)

	return g.Wait()
}

func (a *App) buildOrchestrator(deps *Dependencies, svcs *services) *pipeline.Orchestrator {
	sweeper := pipeline.NewSweeper(
		deps.CampaignStore, svcs.lifecycle, deps.LockManager,
		a.cfg.Sweeper.Interval.Duration, a.cfg.Sweeper.LeaderTTL.Duration,
		a.logger,
	)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(
			deps.Archiver,
			a.cfg.Sweeper.ArchiveInterval.Duration,
			a.cfg.Sweeper.ArchiveRetentionDays,
			a.logger,
		)
	}

	return pipeline.NewOrchestrator(sweeper, archiver, a.logger)
}

// startServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup and shuts the server down gracefully on cancellation.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "server.enabled is false, skipping HTTP API")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Campaigns:    handler.NewCampaignHandler(svcs.campaigns, svcs.lifecycle, a.logger),
		Participants: handler.NewParticipantHandler(svcs.reservations, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		OperatorKey:  a.cfg.Server.OperatorKey,
		APIRateLimit: a.cfg.Server.APIRateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
