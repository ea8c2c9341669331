package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapasar/sambatan/internal/domain"
)

// pgUniqueViolation is the SQLSTATE class for unique constraint
// violations.
const pgUniqueViolation = "23505"

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given
// connection pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

const settlementSelectCols = `id, campaign_id, participant_id, disposition,
	gross_amount, fee_amount, net_amount, wallet_tx_id, created_at`

// Create inserts a settlement record. A second record for the same
// participant and disposition violates the unique index and returns
// domain.ErrAlreadyExists.
func (s *SettlementStore) Create(ctx context.Context, rec domain.SettlementRecord) error {
	const query = `
		INSERT INTO settlements (
			id, campaign_id, participant_id, disposition,
			gross_amount, fee_amount, net_amount, wallet_tx_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.CampaignID, rec.ParticipantID, string(rec.Disposition),
		rec.GrossAmount, rec.FeeAmount, rec.NetAmount, rec.WalletTxID, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create settlement %s: %w", rec.ID, err)
	}
	return nil
}

func scanSettlementFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.SettlementRecord, error) {
	var rec domain.SettlementRecord
	var disposition string

	err := scanner.Scan(
		&rec.ID, &rec.CampaignID, &rec.ParticipantID, &disposition,
		&rec.GrossAmount, &rec.FeeAmount, &rec.NetAmount, &rec.WalletTxID, &rec.CreatedAt,
	)
	if err != nil {
		return domain.SettlementRecord{}, err
	}

	rec.Disposition = domain.Disposition(disposition)
	return rec, nil
}

func scanSettlementRows(rows pgx.Rows) ([]domain.SettlementRecord, error) {
	var records []domain.SettlementRecord
	for rows.Next() {
		rec, err := scanSettlementFromRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetByParticipant retrieves the settlement record for a participant
// with the given disposition, if any.
func (s *SettlementStore) GetByParticipant(ctx context.Context, participantID string, d domain.Disposition) (domain.SettlementRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+settlementSelectCols+` FROM settlements
		 WHERE participant_id = $1 AND disposition = $2`,
		participantID, string(d))

	rec, err := scanSettlementFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SettlementRecord{}, domain.ErrNotFound
		}
		return domain.SettlementRecord{}, fmt.Errorf("postgres: get settlement for participant %s: %w", participantID, err)
	}
	return rec, nil
}

// ListByCampaign returns all settlement records for a campaign in
// creation order.
func (s *SettlementStore) ListByCampaign(ctx context.Context, campaignID string) ([]domain.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+settlementSelectCols+` FROM settlements
		 WHERE campaign_id = $1 ORDER BY created_at ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	records, err := scanSettlementRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settlements: %w", err)
	}
	return records, nil
}

// SumByCampaign totals the gross, fee, and net amounts of a campaign's
// settlements with the given disposition.
func (s *SettlementStore) SumByCampaign(ctx context.Context, campaignID string, d domain.Disposition) (gross, fee, net int64, err error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(gross_amount), 0),
		        COALESCE(SUM(fee_amount), 0),
		        COALESCE(SUM(net_amount), 0)
		 FROM settlements
		 WHERE campaign_id = $1 AND disposition = $2`,
		campaignID, string(d))

	if err := row.Scan(&gross, &fee, &net); err != nil {
		return 0, 0, 0, fmt.Errorf("postgres: sum settlements for campaign %s: %w", campaignID, err)
	}
	return gross, fee, net, nil
}

// ListBefore returns settlement records created before the cutoff, used
// by the archiver.
func (s *SettlementStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+settlementSelectCols+` FROM settlements
		 WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	records, err := scanSettlementRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settlements before cutoff: %w", err)
	}
	return records, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
