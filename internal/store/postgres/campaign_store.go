package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapasar/sambatan/internal/domain"
)

// CampaignStore implements domain.CampaignStore using PostgreSQL.
type CampaignStore struct {
	pool *pgxpool.Pool
}

// NewCampaignStore creates a new CampaignStore backed by the given
// connection pool.
func NewCampaignStore(pool *pgxpool.Pool) *CampaignStore {
	return &CampaignStore{pool: pool}
}

const campaignSelectCols = `id, product_id, seller_account, title,
	total_slots, filled_slots, minimum_slots, slot_price,
	deadline, status, created_at, updated_at`

// Create inserts a new campaign.
func (s *CampaignStore) Create(ctx context.Context, c domain.Campaign) error {
	const query = `
		INSERT INTO campaigns (
			id, product_id, seller_account, title,
			total_slots, filled_slots, minimum_slots, slot_price,
			deadline, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.ProductID, c.SellerAccount, c.Title,
		c.TotalSlots, c.FilledSlots, c.MinimumSlots, c.SlotPrice,
		c.Deadline, string(c.Status), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create campaign %s: %w", c.ID, err)
	}
	return nil
}

func scanCampaignFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Campaign, error) {
	var c domain.Campaign
	var status string

	err := scanner.Scan(
		&c.ID, &c.ProductID, &c.SellerAccount, &c.Title,
		&c.TotalSlots, &c.FilledSlots, &c.MinimumSlots, &c.SlotPrice,
		&c.Deadline, &status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Campaign{}, err
	}

	c.Status = domain.CampaignStatus(status)
	return c, nil
}

func scanCampaignRows(rows pgx.Rows) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	for rows.Next() {
		c, err := scanCampaignFromRow(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// GetByID retrieves a single campaign by ID.
func (s *CampaignStore) GetByID(ctx context.Context, id string) (domain.Campaign, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+campaignSelectCols+` FROM campaigns WHERE id = $1`, id)

	c, err := scanCampaignFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Campaign{}, domain.ErrNotFound
		}
		return domain.Campaign{}, fmt.Errorf("postgres: get campaign %s: %w", id, err)
	}
	return c, nil
}

// Update persists the mutable campaign fields. Callers must hold the
// campaign's exclusive section.
func (s *CampaignStore) Update(ctx context.Context, c domain.Campaign) error {
	const query = `
		UPDATE campaigns
		SET filled_slots = $1, status = $2, deadline = $3, updated_at = NOW()
		WHERE id = $4`

	tag, err := s.pool.Exec(ctx, query,
		c.FilledSlots, string(c.Status), c.Deadline, c.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update campaign %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiring returns campaigns still in active or locked status whose
// deadline is at or before the given time. Used only by the sweeper.
func (s *CampaignStore) ListExpiring(ctx context.Context, before time.Time) ([]domain.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignSelectCols+` FROM campaigns
		 WHERE status IN ('active', 'locked') AND deadline <= $1
		 ORDER BY deadline ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expiring campaigns: %w", err)
	}
	defer rows.Close()

	campaigns, err := scanCampaignRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expiring campaigns: %w", err)
	}
	return campaigns, nil
}

// ListByStatus returns campaigns in the given status with pagination.
func (s *CampaignStore) ListByStatus(ctx context.Context, status domain.CampaignStatus, opts domain.ListOpts) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignSelectCols + ` FROM campaigns WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list campaigns by status: %w", err)
	}
	defer rows.Close()

	campaigns, err := scanCampaignRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan campaigns by status: %w", err)
	}
	return campaigns, nil
}

// Compile-time interface check.
var _ domain.CampaignStore = (*CampaignStore)(nil)
