package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/exports"
)

type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Save insert Export record
func (r *ExportRepository) Save(ctx context.Context, e *domain.Export) error {
	const q = `
INSERT INTO run_exports
(id, tenant_id, run_id, issue_key, issue_url, status, error_code, created_at)
VALUES (?,?,?,?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.TenantID, e.RunID,
		nullString(e.IssueKey), nullString(e.IssueURL),
		e.Status, nullString(e.ErrorCode), created,
	)
	return err
}

// Paginate exports per tenant, newest first
func (r *ExportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Export, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, run_id, issue_key, issue_url, status, error_code, created_at
FROM run_exports
WHERE tenant_id=? ORDER BY created_at DESC LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestByRun returns the most recent export attempt for a run, nil when none.
func (r *ExportRepository) LatestByRun(ctx context.Context, tenant string, runID string) (*domain.Export, error) {
	const q = `
SELECT id, tenant_id, run_id, issue_key, issue_url, status, error_code, created_at
FROM run_exports
WHERE tenant_id=? AND run_id=? ORDER BY created_at DESC LIMIT 1;
`
	e, err := scanExport(r.db.QueryRowContext(ctx, q, tenant, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func scanExport(row rowScanner) (*domain.Export, error) {
	var e domain.Export
	var issueKey, issueURL, errorCode sql.NullString
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.RunID,
		&issueKey, &issueURL, &e.Status, &errorCode, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.IssueKey = fromNull(issueKey)
	e.IssueURL = fromNull(issueURL)
	e.ErrorCode = fromNull(errorCode)
	return &e, nil
}
