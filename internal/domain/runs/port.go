package runs

import "context"

// Repository port (interface untuk persistence).
// Every state change is a compare-and-set guarded by the current status so the
// serialization rules hold across processes; implementations must report
// ErrStateConflict when the guard does not match.
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, tenant string, id RunID) (*Run, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Run, error)

	// MarkReady: processing -> ready_for_review, storing the detection output.
	MarkReady(ctx context.Context, tenant string, id RunID, report *RedactionReport, redactedText, artifactURL string) error
	// MarkFailed: processing -> failed. Terminal.
	MarkFailed(ctx context.Context, tenant string, id RunID, errorMessage string) error
	// MarkCancelled: processing|ready_for_review -> cancelled. Terminal.
	MarkCancelled(ctx context.Context, tenant string, id RunID) error
	// ClaimExport: ready_for_review -> exported, recording the tracker
	// reference. Succeeds at most once per run.
	ClaimExport(ctx context.Context, tenant string, id RunID, exportRef string) error
}

// TicketSource supplies the raw text to sanitize.
type TicketSource interface {
	FetchTicketText(ctx context.Context, tenant, ticketID string, opts Options) (string, error)
}

// IssueRequest carries only sanitized content plus caller-supplied metadata.
type IssueRequest struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   string   `json:"issue_type"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels,omitempty"`
}

// IssueRef identifies the created downstream issue.
type IssueRef struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// TrackerSink port (interface untuk downstream tracker).
type TrackerSink interface {
	CreateIssue(ctx context.Context, req IssueRequest) (IssueRef, error)
}

// Notification is posted after a successful export. Best effort only.
type Notification struct {
	IssueKey string `json:"issue_key"`
	IssueURL string `json:"issue_url,omitempty"`
	TicketID string `json:"ticket_id"`
	Summary  string `json:"summary"`
	Priority string `json:"priority,omitempty"`
}

// NotifySink port (interface untuk notification channel).
type NotifySink interface {
	Notify(ctx context.Context, n Notification) error
}

// ArtifactStore port (interface untuk penyimpanan artefak).
type ArtifactStore interface {
	PutText(ctx context.Context, key, text string) (string, error)
}

// ConfigSource resolves tenant redaction settings. Read fresh per run
// creation; tenants may change them between runs.
type ConfigSource interface {
	RedactionSettings(ctx context.Context, tenant string) (RedactionSettings, error)
}
