package runs

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/frozoai/escalatesafe/internal/application"
	"github.com/frozoai/escalatesafe/internal/domain/audit"
	"github.com/frozoai/escalatesafe/internal/domain/exports"
	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
	"github.com/frozoai/escalatesafe/internal/redaction"
)

// maxTicketBytes caps the input size; anything larger fails the run rather
// than stalling the detector.
const maxTicketBytes = 1 << 20

// Service implements the run lifecycle use-cases.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Repo      domain.Repository
	Tickets   domain.TicketSource
	Tracker   domain.TrackerSink
	Notifier  domain.NotifySink
	Artifacts domain.ArtifactStore
	Config    domain.ConfigSource
	Exports   exports.Repository
	Audit     audit.Repository
	Detector  *redaction.Detector
	Redactor  *redaction.Redactor
	Clock     application.Clock

	// approvals serializes concurrent approve calls per run within this
	// process; the ClaimExport compare-and-set covers other processes.
	approvals singleflight.Group
}

//
// ==== USE CASES ====
//

// Command untuk create run
type CreateRunCommand struct {
	TenantID string
	TicketID string
	Options  domain.Options
}

// CreateRun inserts a processing run and kicks off detection in the
// background. The returned run is the initial snapshot; callers poll Get
// until the status leaves processing.
func (s *Service) CreateRun(ctx context.Context, cmd CreateRunCommand) (*domain.Run, error) {
	if strings.TrimSpace(cmd.TicketID) == "" {
		return nil, fmt.Errorf("%w: ticket_id is required", domain.ErrInvalidInput)
	}

	// Settings are read fresh per run creation; tenants change them between runs.
	settings, err := s.Config.RedactionSettings(ctx, cmd.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load redaction settings: %w", err)
	}
	if cmd.Options.IncludeInternalNotes && !settings.AllowInternalNotes {
		return nil, fmt.Errorf("%w: internal notes not enabled for this tenant", domain.ErrInvalidInput)
	}

	now := s.Clock.Now()
	run := &domain.Run{
		ID:        domain.RunID(uuid.New().String()),
		TenantID:  cmd.TenantID,
		TicketID:  cmd.TicketID,
		Status:    domain.StatusProcessing,
		Options:   cmd.Options,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Save(ctx, run); err != nil {
		return nil, err
	}
	s.auditEvent(ctx, run.TenantID, run.ID, audit.EventRunCreated,
		fmt.Sprintf(`{"ticket_id":%q}`, run.TicketID))

	// Run detection until done with context.Background() so the pipeline
	// survives the request that triggered it.
	go s.processUntilDone(*run, settings)

	return run, nil
}

// processUntilDone fetches the ticket text, detects and redacts it, and
// moves the run to ready_for_review or failed. The redacted text is computed
// exactly once here; re-approval never re-runs detection.
func (s *Service) processUntilDone(run domain.Run, settings domain.RedactionSettings) {
	ctx := context.Background()

	text, err := s.Tickets.FetchTicketText(ctx, run.TenantID, run.TicketID, run.Options)
	if err != nil {
		s.failRun(ctx, run, fmt.Sprintf("ticket fetch failed: %v", err))
		return
	}
	if strings.TrimSpace(text) == "" {
		s.failRun(ctx, run, "ticket text is empty")
		return
	}
	if len(text) > maxTicketBytes {
		s.failRun(ctx, run, fmt.Sprintf("ticket text too large: %d bytes", len(text)))
		return
	}

	cfg := redaction.Config{
		ConfidenceThreshold:    settings.ConfidenceThreshold,
		EnabledEntityTypes:     settings.EnabledEntityTypes,
		EnableRegionalEntities: settings.EnableRegionalEntities,
	}
	detections := s.Detector.Analyze(text, cfg)
	redacted, report := s.Redactor.Redact(text, detections)

	// Artifact upload is best effort; the persisted run row is the source of truth.
	var artifactURL string
	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/%s/redacted.txt", run.TenantID, run.ID)
		url, aerr := s.Artifacts.PutText(ctx, key, redacted)
		if aerr != nil {
			log.Printf("runs: artifact upload failed tenant=%s run=%s: %v", run.TenantID, run.ID, aerr)
		} else {
			artifactURL = url
		}
	}

	if err := s.Repo.MarkReady(ctx, run.TenantID, run.ID, toDomainReport(report), redacted, artifactURL); err != nil {
		// Lost to a concurrent cancel; nothing to do.
		log.Printf("runs: mark ready skipped tenant=%s run=%s: %v", run.TenantID, run.ID, err)
		return
	}
	s.auditEvent(ctx, run.TenantID, run.ID, audit.EventRedactionCompleted,
		fmt.Sprintf(`{"total_detections":%d,"low_confidence_count":%d}`,
			report.TotalDetections, report.LowConfidenceCount))
}

func (s *Service) failRun(ctx context.Context, run domain.Run, msg string) {
	if err := s.Repo.MarkFailed(ctx, run.TenantID, run.ID, msg); err != nil {
		log.Printf("runs: mark failed skipped tenant=%s run=%s: %v", run.TenantID, run.ID, err)
		return
	}
	log.Printf("runs: run failed tenant=%s run=%s: %s", run.TenantID, run.ID, msg)
	s.auditEvent(ctx, run.TenantID, run.ID, audit.EventRunFailed, fmt.Sprintf(`{"reason":%q}`, msg))
}

// Get ambil 1 run by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// Latest ambil N run terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Run, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Cancel moves a run to cancelled. Permitted only from processing or
// ready_for_review; an exported run can never be cancelled.
func (s *Service) Cancel(ctx context.Context, tenant string, id domain.RunID) error {
	run, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: status is %s", domain.ErrNotCancellable, run.Status)
	}
	if err := s.Repo.MarkCancelled(ctx, tenant, id); err != nil {
		// The exported outcome wins the cancel/export race once recorded.
		if fresh, gerr := s.Repo.Get(ctx, tenant, id); gerr == nil && fresh.Status == domain.StatusExported {
			return fmt.Errorf("%w: status is %s", domain.ErrNotCancellable, fresh.Status)
		}
		return err
	}
	s.auditEvent(ctx, tenant, id, audit.EventRunCancelled, "")
	return nil
}

func toDomainReport(r *redaction.Report) *domain.RedactionReport {
	if r == nil {
		return nil
	}
	out := &domain.RedactionReport{
		TotalDetections:    r.TotalDetections,
		EntityCounts:       r.EntityCounts,
		LowConfidenceCount: r.LowConfidenceCount,
	}
	for _, w := range r.LowConfidenceWarnings {
		out.LowConfidenceWarnings = append(out.LowConfidenceWarnings, domain.LowConfidenceWarning{
			EntityType: w.EntityType,
			Score:      w.Score,
			Start:      w.Start,
			End:        w.End,
		})
	}
	return out
}

// auditEvent records a lifecycle event. Best effort; audit must never block a
// run transition.
func (s *Service) auditEvent(ctx context.Context, tenant string, id domain.RunID, eventType, detailsJSON string) {
	if s.Audit == nil {
		return
	}
	e := &audit.Event{
		TenantID:    tenant,
		RunID:       string(id),
		EventType:   eventType,
		DetailsJSON: detailsJSON,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Audit.Save(ctx, e); err != nil {
		log.Printf("runs: audit save failed tenant=%s run=%s event=%s: %v", tenant, id, eventType, err)
	}
}
