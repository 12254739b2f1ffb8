package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save insert/update Run record
func (r *RunRepository) Save(ctx context.Context, run *domain.Run) error {
	const q = `
INSERT INTO escalation_runs
(id, tenant_id, ticket_id, status, include_internal_notes, include_last_public_comments,
 report_json, redacted_text, error_message, export_ref, artifact_url, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 report_json=VALUES(report_json),
 redacted_text=VALUES(redacted_text),
 error_message=VALUES(error_message),
 artifact_url=VALUES(artifact_url),
 updated_at=VALUES(updated_at);
`
	reportJSON, err := marshalReport(run.Report)
	if err != nil {
		return err
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := run.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err = r.db.ExecContext(ctx, q,
		run.ID, run.TenantID, run.TicketID, run.Status,
		run.Options.IncludeInternalNotes, run.Options.IncludeLastPublicComments,
		reportJSON, nullString(run.RedactedText), nullString(run.ErrorMessage),
		nullString(run.ExportRef), nullString(run.ArtifactURL),
		created, updated,
	)
	return err
}

// Get by ID + Tenant
func (r *RunRepository) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	const q = `
SELECT id, tenant_id, ticket_id, status, include_internal_notes, include_last_public_comments,
       report_json, redacted_text, error_message, export_ref, artifact_url, created_at, updated_at
FROM escalation_runs
WHERE tenant_id=? AND id=? LIMIT 1;
`
	run, err := scanRun(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// Latest runs per tenant
func (r *RunRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, ticket_id, status, include_internal_notes, include_last_public_comments,
       report_json, redacted_text, error_message, export_ref, artifact_url, created_at, updated_at
FROM escalation_runs
WHERE tenant_id=? ORDER BY created_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkReady: processing -> ready_for_review with the detection output.
func (r *RunRepository) MarkReady(ctx context.Context, tenant string, id domain.RunID, report *domain.RedactionReport, redactedText, artifactURL string) error {
	reportJSON, err := marshalReport(report)
	if err != nil {
		return err
	}
	const q = `
UPDATE escalation_runs
SET status=?, report_json=?, redacted_text=?, artifact_url=?, updated_at=?
WHERE tenant_id=? AND id=? AND status=?;
`
	return r.guarded(ctx, q,
		domain.StatusReadyForReview, reportJSON, nullString(redactedText), nullString(artifactURL),
		time.Now().UTC(), tenant, id, domain.StatusProcessing)
}

// MarkFailed: processing -> failed. Terminal.
func (r *RunRepository) MarkFailed(ctx context.Context, tenant string, id domain.RunID, errorMessage string) error {
	const q = `
UPDATE escalation_runs
SET status=?, error_message=?, updated_at=?
WHERE tenant_id=? AND id=? AND status=?;
`
	return r.guarded(ctx, q,
		domain.StatusFailed, nullString(errorMessage), time.Now().UTC(),
		tenant, id, domain.StatusProcessing)
}

// MarkCancelled: processing|ready_for_review -> cancelled. Terminal.
func (r *RunRepository) MarkCancelled(ctx context.Context, tenant string, id domain.RunID) error {
	const q = `
UPDATE escalation_runs
SET status=?, updated_at=?
WHERE tenant_id=? AND id=? AND status IN (?, ?);
`
	return r.guarded(ctx, q,
		domain.StatusCancelled, time.Now().UTC(),
		tenant, id, domain.StatusProcessing, domain.StatusReadyForReview)
}

// ClaimExport records the export reference exactly once. The export_ref guard
// makes the update a compare-and-set across processes.
func (r *RunRepository) ClaimExport(ctx context.Context, tenant string, id domain.RunID, exportRef string) error {
	const q = `
UPDATE escalation_runs
SET status=?, export_ref=?, updated_at=?
WHERE tenant_id=? AND id=? AND status=? AND (export_ref IS NULL OR export_ref='');
`
	return r.guarded(ctx, q,
		domain.StatusExported, exportRef, time.Now().UTC(),
		tenant, id, domain.StatusReadyForReview)
}

// guarded runs a status-guarded update and maps "no rows matched" to
// ErrStateConflict so callers can tell a lost race from an SQL failure.
func (r *RunRepository) guarded(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var reportJSON, redacted, errMsg, exportRef, artifactURL sql.NullString
	if err := row.Scan(
		&run.ID, &run.TenantID, &run.TicketID, &run.Status,
		&run.Options.IncludeInternalNotes, &run.Options.IncludeLastPublicComments,
		&reportJSON, &redacted, &errMsg, &exportRef, &artifactURL,
		&run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.RedactedText = fromNull(redacted)
	run.ErrorMessage = fromNull(errMsg)
	run.ExportRef = fromNull(exportRef)
	run.ArtifactURL = fromNull(artifactURL)
	if reportJSON.Valid && reportJSON.String != "" {
		var report domain.RedactionReport
		if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
			return nil, fmt.Errorf("decode report_json: %w", err)
		}
		run.Report = &report
	}
	return &run, nil
}

func marshalReport(report *domain.RedactionReport) (sql.NullString, error) {
	if report == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(report)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode report_json: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
