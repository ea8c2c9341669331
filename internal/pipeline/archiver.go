package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// Archiver periodically exports aged audit and settlement rows to
// object storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	interval      time.Duration
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver with the given schedule and retention
// window.
func NewArchiver(blobArchiver domain.Archiver, interval time.Duration, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass over everything older than the
// retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	auditArchived, err := a.blobArchiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit log before %v: %w", cutoff, err)
	}

	settlementsArchived, err := a.blobArchiver.ArchiveSettlements(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving settlements before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("audit_archived", auditArchived),
		slog.Int64("settlements_archived", settlementsArchived),
	)
	return nil
}

// RunLoop runs archive passes on the configured interval until the
// context is cancelled.
func (a *Archiver) RunLoop(ctx context.Context) error {
	a.logger.Info("archiver started", slog.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
