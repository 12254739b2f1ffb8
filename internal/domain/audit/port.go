package audit

import (
	"context"
)

// Repository defines persistence for audit events
type Repository interface {
	Save(ctx context.Context, e *Event) error
	ListByRun(ctx context.Context, tenant string, runID string, limit int) ([]*Event, error)
}
