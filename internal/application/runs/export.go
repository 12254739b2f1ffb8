package runs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/frozoai/escalatesafe/internal/domain/audit"
	"github.com/frozoai/escalatesafe/internal/domain/exports"
	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

const maxSummaryLen = 120

// TrackerMetadata is caller-supplied issue metadata. The description is never
// taken from the caller; it is built from the run's redacted text only.
type TrackerMetadata struct {
	Summary   string   `json:"summary,omitempty"`
	IssueType string   `json:"issue_type,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// NotifyMetadata controls the best-effort notification step.
type NotifyMetadata struct {
	Enabled bool `json:"enabled"`
}

// Approve exports a reviewed run to the downstream tracker, at most once per
// run. Repeat calls, including concurrent ones, observe the first successful
// export reference instead of creating a second issue.
func (s *Service) Approve(ctx context.Context, tenant string, id domain.RunID, tracker TrackerMetadata, notify NotifyMetadata) (domain.IssueRef, error) {
	key := tenant + "/" + string(id)
	v, err, _ := s.approvals.Do(key, func() (any, error) {
		return s.export(ctx, tenant, id, tracker, notify)
	})
	if err != nil {
		return domain.IssueRef{}, err
	}
	return v.(domain.IssueRef), nil
}

// export is the coordinator behind Approve. It runs with the per-run
// singleflight held; cross-process duplicates are stopped by ClaimExport.
func (s *Service) export(ctx context.Context, tenant string, id domain.RunID, tracker TrackerMetadata, notify NotifyMetadata) (domain.IssueRef, error) {
	run, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return domain.IssueRef{}, err
	}

	// Idempotency short-circuit: once a reference exists, no external call is made.
	if run.ExportRef != "" {
		return s.existingRef(ctx, tenant, run), nil
	}
	if run.Status != domain.StatusReadyForReview {
		return domain.IssueRef{}, fmt.Errorf("%w: status is %s", domain.ErrNotReviewable, run.Status)
	}

	summary := tracker.Summary
	if summary == "" {
		summary = fmt.Sprintf("Escalation from ticket #%s", run.TicketID)
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}

	req := domain.IssueRequest{
		Summary:     summary,
		Description: buildDescription(run),
		IssueType:   orDefault(tracker.IssueType, "Bug"),
		Priority:    orDefault(tracker.Priority, "High"),
		Labels:      tracker.Labels,
	}

	ref, err := s.Tracker.CreateIssue(ctx, req)
	if err != nil {
		s.recordExport(ctx, tenant, run, domain.IssueRef{}, "TRACKER_API_ERROR")
		s.auditEvent(ctx, tenant, id, audit.EventExportFailed, fmt.Sprintf(`{"error":%q}`, err.Error()))
		// The run stays ready_for_review; approve is retryable.
		return domain.IssueRef{}, fmt.Errorf("%w: %v", domain.ErrExportFailed, err)
	}

	if err := s.Repo.ClaimExport(ctx, tenant, id, ref.Key); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			// Another approve won between our read and the claim; surface the
			// winner's reference rather than erroring.
			if fresh, gerr := s.Repo.Get(ctx, tenant, id); gerr == nil && fresh.ExportRef != "" {
				return s.existingRef(ctx, tenant, fresh), nil
			}
		}
		return domain.IssueRef{}, err
	}

	s.recordExport(ctx, tenant, run, ref, "")
	s.auditEvent(ctx, tenant, id, audit.EventExportSucceeded,
		fmt.Sprintf(`{"issue_key":%q}`, ref.Key))

	// Notification after the export has been recorded; its failure never
	// affects the run's exported status.
	if notify.Enabled && s.Notifier != nil {
		n := domain.Notification{
			IssueKey: ref.Key,
			IssueURL: ref.URL,
			TicketID: run.TicketID,
			Summary:  summary,
			Priority: req.Priority,
		}
		if nerr := s.Notifier.Notify(ctx, n); nerr != nil {
			log.Printf("runs: notification failed tenant=%s run=%s: %v", tenant, id, nerr)
			s.auditEvent(ctx, tenant, id, audit.EventNotifyFailed, fmt.Sprintf(`{"error":%q}`, nerr.Error()))
		}
	}

	return ref, nil
}

// buildDescription assembles the tracker issue body from the sanitized
// preview only. The unredacted ticket text never reaches this function.
func buildDescription(run *domain.Run) string {
	total := 0
	if run.Report != nil {
		total = run.Report.TotalDetections
	}
	return fmt.Sprintf("Escalated from ticket #%s\n\n%s\n\n---\nCreated by EscalateSafe with PII redaction. Entities redacted: %d\n",
		run.TicketID, run.RedactedText, total)
}

// existingRef resolves the stored reference, pulling the issue URL from the
// export history when available.
func (s *Service) existingRef(ctx context.Context, tenant string, run *domain.Run) domain.IssueRef {
	ref := domain.IssueRef{Key: run.ExportRef}
	if s.Exports != nil {
		if e, err := s.Exports.LatestByRun(ctx, tenant, string(run.ID)); err == nil && e != nil && e.IssueKey == ref.Key {
			ref.URL = e.IssueURL
		}
	}
	return ref
}

// recordExport appends an export history row. Best effort.
func (s *Service) recordExport(ctx context.Context, tenant string, run *domain.Run, ref domain.IssueRef, errorCode string) {
	if s.Exports == nil {
		return
	}
	status := "success"
	if errorCode != "" {
		status = "failed"
	}
	e := &exports.Export{
		ID:        exports.ExportID(uuid.New().String()),
		TenantID:  tenant,
		RunID:     string(run.ID),
		IssueKey:  ref.Key,
		IssueURL:  ref.URL,
		Status:    status,
		ErrorCode: errorCode,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Exports.Save(ctx, e); err != nil {
		log.Printf("runs: export record save failed tenant=%s run=%s: %v", tenant, run.ID, err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
