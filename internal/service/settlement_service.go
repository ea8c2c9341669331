package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lokapasar/sambatan/internal/domain"
)

// SettlementService executes terminal fund movements. Every path is
// idempotent: replaying a release or refund for a participant returns
// the original settlement record instead of moving funds again.
type SettlementService struct {
	participants domain.ParticipantStore
	settlements  domain.SettlementStore
	wallet       domain.WalletClient
	audit        domain.AuditStore
	bus          domain.SignalBus
	logger       *slog.Logger
	feeRate      float64
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	participants domain.ParticipantStore,
	settlements domain.SettlementStore,
	wallet domain.WalletClient,
	audit domain.AuditStore,
	bus domain.SignalBus,
	feeRate float64,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		participants: participants,
		settlements:  settlements,
		wallet:       wallet,
		audit:        audit,
		bus:          bus,
		logger:       logger.With(slog.String("component", "settlement_service")),
		feeRate:      feeRate,
	}
}

// expectedFee computes the platform fee on a gross amount: gross times
// the fee rate, rounded half away from zero.
func (s *SettlementService) expectedFee(gross int64) int64 {
	return decimal.NewFromInt(gross).
		Mul(decimal.NewFromFloat(s.feeRate)).
		Round(0).
		IntPart()
}

// ReleaseParticipant pays out one participant's held contribution to
// the seller minus the platform fee and records the settlement. The
// participant moves to fulfilled.
func (s *SettlementService) ReleaseParticipant(ctx context.Context, campaign domain.Campaign, p domain.Participant) (domain.SettlementRecord, error) {
	if existing, err := s.settlements.GetByParticipant(ctx, p.ID, domain.DispositionPayout); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: check payout for %s: %w", p.ID, err)
	}

	if p.HoldTxID == "" {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: participant %s has no hold: %w", p.ID, domain.ErrSettlementFailure)
	}

	release, err := s.wallet.ReleaseHeldFunds(ctx, p.HoldTxID, campaign.SellerAccount, s.feeRate)
	if err != nil {
		s.recordFailure(ctx, campaign.ID, p.ID, "release", err)
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: release hold %s: %v: %w", p.HoldTxID, err, domain.ErrSettlementFailure)
	}

	if expected := s.expectedFee(p.ContributionAmount); release.Fee != expected {
		s.logger.WarnContext(ctx, "wallet fee differs from expected",
			slog.String("participant_id", p.ID),
			slog.Int64("wallet_fee", release.Fee),
			slog.Int64("expected_fee", expected),
		)
	}

	rec := domain.SettlementRecord{
		ID:            uuid.New().String(),
		CampaignID:    campaign.ID,
		ParticipantID: p.ID,
		Disposition:   domain.DispositionPayout,
		GrossAmount:   p.ContributionAmount,
		FeeAmount:     release.Fee,
		NetAmount:     release.Net,
		WalletTxID:    release.TxID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.settlements.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race with a concurrent settle; the wallet call was
			// idempotent, so the stored record is authoritative.
			return s.settlements.GetByParticipant(ctx, p.ID, domain.DispositionPayout)
		}
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: record payout for %s: %w", p.ID, err)
	}

	p.Status = domain.ParticipantStatusFulfilled
	if err := s.participants.Update(ctx, p); err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: mark participant %s fulfilled: %w", p.ID, err)
	}

	if auditErr := s.audit.Record(ctx, campaign.ID, domain.EventFundsReleased, map[string]any{
		"participant_id": p.ID,
		"gross":          rec.GrossAmount,
		"fee":            rec.FeeAmount,
		"net":            rec.NetAmount,
		"wallet_tx_id":   rec.WalletTxID,
	}, "system"); auditErr != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "funds released",
		slog.String("campaign_id", campaign.ID),
		slog.String("participant_id", p.ID),
		slog.Int64("net", rec.NetAmount),
		slog.Int64("fee", rec.FeeAmount),
	)

	return rec, nil
}

// RefundParticipant returns one participant's full held contribution to
// the buyer and records the settlement. The participant moves to
// refunded.
func (s *SettlementService) RefundParticipant(ctx context.Context, campaign domain.Campaign, p domain.Participant, reason string) (domain.SettlementRecord, error) {
	if existing, err := s.settlements.GetByParticipant(ctx, p.ID, domain.DispositionRefund); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: check refund for %s: %w", p.ID, err)
	}

	if p.HoldTxID == "" {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: participant %s has no hold: %w", p.ID, domain.ErrSettlementFailure)
	}

	refundTx, err := s.wallet.RefundHeldFunds(ctx, p.HoldTxID)
	if err != nil {
		s.recordFailure(ctx, campaign.ID, p.ID, "refund", err)
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: refund hold %s: %v: %w", p.HoldTxID, err, domain.ErrSettlementFailure)
	}

	rec := domain.SettlementRecord{
		ID:            uuid.New().String(),
		CampaignID:    campaign.ID,
		ParticipantID: p.ID,
		Disposition:   domain.DispositionRefund,
		GrossAmount:   p.ContributionAmount,
		FeeAmount:     0,
		NetAmount:     p.ContributionAmount,
		WalletTxID:    refundTx,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.settlements.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.settlements.GetByParticipant(ctx, p.ID, domain.DispositionRefund)
		}
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: record refund for %s: %w", p.ID, err)
	}

	now := time.Now().UTC()
	p.Status = domain.ParticipantStatusRefunded
	p.CancelledAt = &now
	if err := s.participants.Update(ctx, p); err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("settlement_service: mark participant %s refunded: %w", p.ID, err)
	}

	if auditErr := s.audit.Record(ctx, campaign.ID, domain.EventFundsRefunded, map[string]any{
		"participant_id": p.ID,
		"amount":         rec.NetAmount,
		"wallet_tx_id":   rec.WalletTxID,
		"reason":         reason,
	}, "system"); auditErr != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("campaign_id", campaign.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "funds refunded",
		slog.String("campaign_id", campaign.ID),
		slog.String("participant_id", p.ID),
		slog.Int64("amount", rec.NetAmount),
		slog.String("reason", reason),
	)

	return rec, nil
}

// Reconcile sums a campaign's settlement records per disposition so an
// operator can compare against wallet statements.
func (s *SettlementService) Reconcile(ctx context.Context, campaignID string) (map[domain.Disposition][3]int64, error) {
	out := make(map[domain.Disposition][3]int64, 2)
	for _, d := range []domain.Disposition{domain.DispositionPayout, domain.DispositionRefund} {
		gross, fee, net, err := s.settlements.SumByCampaign(ctx, campaignID, d)
		if err != nil {
			return nil, fmt.Errorf("settlement_service: reconcile %s: %w", campaignID, err)
		}
		out[d] = [3]int64{gross, fee, net}
	}
	return out, nil
}

// recordFailure writes a settlement_failed audit entry. The failed
// participant is retried on the next sweep.
func (s *SettlementService) recordFailure(ctx context.Context, campaignID, participantID, op string, cause error) {
	if auditErr := s.audit.Record(ctx, campaignID, domain.EventSettlementFailed, map[string]any{
		"participant_id": participantID,
		"operation":      op,
		"error":          cause.Error(),
	}, "system"); auditErr != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			slog.String("campaign_id", campaignID),
			slog.String("error", auditErr.Error()),
		)
	}
}
