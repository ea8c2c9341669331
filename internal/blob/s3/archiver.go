package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// archiveBatchSize caps how many rows one archive pass pulls from the
// primary store.
const archiveBatchSize = 10000

// ArchiveImpl implements domain.Archiver by querying the ledger stores
// for old records, serializing them to JSONL, and uploading the result
// to S3.
//
// Deletion of the archived records from the primary store is
// intentionally NOT performed here -- that is a separate, explicit step
// to be executed after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	audit       domain.AuditStore
	settlements domain.SettlementStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	audit domain.AuditStore,
	settlements domain.SettlementStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		audit:       audit,
		settlements: settlements,
	}
}

// ArchiveAuditLog queries audit entries before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/audit_log/YYYY-MM.jsonl. The archival itself lands in the
// audit ledger and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log marshal: %w", err)
	}

	path := archivePath("audit_log", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit log upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.audit.Record(ctx, "", "archive.audit_log", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}, "system"); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log record: %w", err)
	}

	return count, nil
}

// ArchiveSettlements queries settlement records before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/settlements/YYYY-MM.jsonl. The archival event is recorded in
// the audit ledger and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.settlements.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements marshal: %w", err)
	}

	path := archivePath("settlements", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Record(ctx, "", "archive.settlements", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}, "system"); err != nil {
		return count, fmt.Errorf("s3blob: archive settlements record: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/audit_log/2026-08.jsonl
//	archive/settlements/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
