package runs

import (
	"time"
)

// ID tipe untuk Run
type RunID string

// Status enum
type Status string

const (
	StatusProcessing     Status = "processing"
	StatusReadyForReview Status = "ready_for_review"
	StatusFailed         Status = "failed"
	StatusExported       Status = "exported"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusExported || s == StatusCancelled
}

// Options captures what the caller asked to include in the sanitized artifact.
type Options struct {
	IncludeInternalNotes      bool `json:"include_internal_notes"`
	IncludeLastPublicComments int  `json:"include_last_public_comments"`
}

// LowConfidenceWarning flags a redacted span whose score sat below the warn band.
type LowConfidenceWarning struct {
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// RedactionReport value object, derived from one detection pass.
type RedactionReport struct {
	TotalDetections       int                    `json:"total_detections"`
	EntityCounts          map[string]int         `json:"entity_counts"`
	LowConfidenceCount    int                    `json:"low_confidence_count"`
	LowConfidenceWarnings []LowConfidenceWarning `json:"low_confidence_warnings,omitempty"`
}

// RedactionSettings are the per-tenant detector knobs, read fresh per run.
// ConfidenceThreshold is a pointer so an explicit 0 (keep every match) is
// distinguishable from an absent field, which gets the engine default.
type RedactionSettings struct {
	ConfidenceThreshold    *float64 `json:"confidence_threshold,omitempty"`
	EnabledEntityTypes     []string `json:"enabled_entity_types"`
	EnableRegionalEntities bool     `json:"enable_regional_entities"`
	AllowInternalNotes     bool     `json:"allow_internal_notes"`
}

// Aggregate Root: Run
type Run struct {
	ID           RunID            `json:"id"`
	TenantID     string           `json:"tenant_id"`
	TicketID     string           `json:"ticket_id"`
	Status       Status           `json:"status"`
	Options      Options          `json:"options"`
	Report       *RedactionReport `json:"redaction_report,omitempty"`
	RedactedText string           `json:"redacted_text,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ExportRef    string           `json:"export_reference,omitempty"`
	ArtifactURL  string           `json:"artifact_url,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
