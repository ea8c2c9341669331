package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapasar/sambatan/internal/domain"
)

// AuditStore implements domain.AuditStore on an append-only PostgreSQL
// table. Entries are never updated or deleted through this store.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection
// pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Record appends an audit entry for the campaign.
func (s *AuditStore) Record(ctx context.Context, campaignID, event string, metadata map[string]any, actor string) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit metadata: %w", err)
	}
	if actor == "" {
		actor = "system"
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (campaign_id, event, metadata, actor, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		campaignID, event, payload, actor, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record audit event %s: %w", event, err)
	}
	return nil
}

const auditSelectCols = `id, campaign_id, event, metadata, actor, created_at`

func scanAuditFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.AuditEntry, error) {
	var e domain.AuditEntry
	var payload []byte

	err := scanner.Scan(&e.ID, &e.CampaignID, &e.Event, &payload, &e.Actor, &e.CreatedAt)
	if err != nil {
		return domain.AuditEntry{}, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Metadata); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return e, nil
}

func scanAuditRows(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditFromRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListByCampaign returns the campaign's audit trail, newest first.
func (s *AuditStore) ListByCampaign(ctx context.Context, campaignID string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+auditSelectCols+` FROM audit_log
		 WHERE campaign_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		campaignID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit entries: %w", err)
	}
	return entries, nil
}

// ListBefore returns audit entries created before the cutoff, oldest
// first, used by the archiver.
func (s *AuditStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditSelectCols+` FROM audit_log
		 WHERE created_at < $1 ORDER BY created_at ASC, id ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit entries before cutoff: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
