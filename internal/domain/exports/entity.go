package exports

import "time"

// ExportID identifier type
type ExportID string

// Export represents one tracker export attempt stored for auditing and retrieval
type Export struct {
	ID        ExportID  `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RunID     string    `json:"run_id"`
	IssueKey  string    `json:"issue_key,omitempty"`
	IssueURL  string    `json:"issue_url,omitempty"`
	Status    string    `json:"status"` // success | failed
	ErrorCode string    `json:"error_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
