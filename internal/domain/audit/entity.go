package audit

import "time"

// Event types recorded over a run's lifecycle.
const (
	EventRunCreated         = "run_created"
	EventRedactionCompleted = "redaction_completed"
	EventRunFailed          = "run_failed"
	EventRunCancelled       = "run_cancelled"
	EventExportSucceeded    = "export_succeeded"
	EventExportFailed       = "export_failed"
	EventNotifyFailed       = "notify_failed"
)

// Event represents a persisted audit trail entry. Metadata carries counts and
// identifiers only, never ticket content.
type Event struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	RunID       string    `json:"run_id"`
	EventType   string    `json:"event_type"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
