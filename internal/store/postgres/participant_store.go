package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapasar/sambatan/internal/domain"
)

// ParticipantStore implements domain.ParticipantStore using PostgreSQL.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

// NewParticipantStore creates a new ParticipantStore backed by the given
// connection pool.
func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

const participantSelectCols = `id, campaign_id, buyer_id, slot_count,
	contribution_amount, shipping_address, status, hold_tx_id,
	joined_at, confirmed_at, cancelled_at`

// Create inserts a new participant.
func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) error {
	const query = `
		INSERT INTO participants (
			id, campaign_id, buyer_id, slot_count,
			contribution_amount, shipping_address, status, hold_tx_id,
			joined_at, confirmed_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.CampaignID, p.BuyerID, p.SlotCount,
		p.ContributionAmount, p.ShippingAddress, string(p.Status), p.HoldTxID,
		p.JoinedAt, p.ConfirmedAt, p.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create participant %s: %w", p.ID, err)
	}
	return nil
}

func scanParticipantFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Participant, error) {
	var p domain.Participant
	var status string

	err := scanner.Scan(
		&p.ID, &p.CampaignID, &p.BuyerID, &p.SlotCount,
		&p.ContributionAmount, &p.ShippingAddress, &status, &p.HoldTxID,
		&p.JoinedAt, &p.ConfirmedAt, &p.CancelledAt,
	)
	if err != nil {
		return domain.Participant{}, err
	}

	p.Status = domain.ParticipantStatus(status)
	return p, nil
}

func scanParticipantRows(rows pgx.Rows) ([]domain.Participant, error) {
	var participants []domain.Participant
	for rows.Next() {
		p, err := scanParticipantFromRow(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// GetByID retrieves a single participant by ID.
func (s *ParticipantStore) GetByID(ctx context.Context, id string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participantSelectCols+` FROM participants WHERE id = $1`, id)

	p, err := scanParticipantFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Participant{}, domain.ErrNotFound
		}
		return domain.Participant{}, fmt.Errorf("postgres: get participant %s: %w", id, err)
	}
	return p, nil
}

// Update persists status, hold reference, and status timestamps.
func (s *ParticipantStore) Update(ctx context.Context, p domain.Participant) error {
	const query = `
		UPDATE participants
		SET status = $1, hold_tx_id = $2, confirmed_at = $3, cancelled_at = $4
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query,
		string(p.Status), p.HoldTxID, p.ConfirmedAt, p.CancelledAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update participant %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a participant row. Only the hold-failure rollback of a
// pending_payment join may call this; the predicate enforces it.
func (s *ParticipantStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE id = $1 AND status = 'pending_payment'`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete participant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByCampaign returns all participants of a campaign ordered by join
// time.
func (s *ParticipantStore) ListByCampaign(ctx context.Context, campaignID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantSelectCols+` FROM participants
		 WHERE campaign_id = $1 ORDER BY joined_at ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants: %w", err)
	}
	defer rows.Close()

	participants, err := scanParticipantRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan participants: %w", err)
	}
	return participants, nil
}

// ListByCampaignAndStatus returns the campaign's participants whose
// status is one of the given statuses.
func (s *ParticipantStore) ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses ...domain.ParticipantStatus) ([]domain.Participant, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := []any{campaignID}
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, string(st))
	}

	query := `SELECT ` + participantSelectCols + ` FROM participants
		WHERE campaign_id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY joined_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants by status: %w", err)
	}
	defer rows.Close()

	participants, err := scanParticipantRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan participants by status: %w", err)
	}
	return participants, nil
}

// Compile-time interface check.
var _ domain.ParticipantStore = (*ParticipantStore)(nil)
