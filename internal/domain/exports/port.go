package exports

import "context"

// Repository port for persisting and querying export attempts
type Repository interface {
	Save(ctx context.Context, e *Export) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Export, error)
	LatestByRun(ctx context.Context, tenant string, runID string) (*Export, error)
}
