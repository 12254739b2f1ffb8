package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/audit"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Save insert audit event (append only)
func (r *AuditRepository) Save(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO audit_events (tenant_id, run_id, event_type, details_json, created_at)
VALUES (?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.TenantID, e.RunID, e.EventType, nullString(e.DetailsJSON), created,
	)
	return err
}

// ListByRun returns the run's trail, oldest first
func (r *AuditRepository) ListByRun(ctx context.Context, tenant string, runID string, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, tenant_id, run_id, event_type, details_json, created_at
FROM audit_events
WHERE tenant_id=? AND run_id=? ORDER BY created_at ASC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var e domain.Event
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RunID, &e.EventType, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DetailsJSON = fromNull(details)
		out = append(out, &e)
	}
	return out, rows.Err()
}
