package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

func TestApproveExportsRun(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	ref, err := env.svc.Approve(context.Background(), "acme", "r1",
		TrackerMetadata{Summary: "Login outage", Priority: "Critical"},
		NotifyMetadata{Enabled: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ref.Key == "" {
		t.Fatal("empty export reference")
	}

	run, _ := env.repo.Get(context.Background(), "acme", "r1")
	if run.Status != domain.StatusExported {
		t.Errorf("status = %s, want exported", run.Status)
	}
	if run.ExportRef != ref.Key {
		t.Errorf("export ref = %q, want %q", run.ExportRef, ref.Key)
	}
	if env.tracker.callCount() != 1 {
		t.Errorf("tracker calls = %d, want 1", env.tracker.callCount())
	}
	if env.notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", env.notifier.calls)
	}
	if len(env.exports.records) != 1 || env.exports.records[0].Status != "success" {
		t.Errorf("export records = %+v", env.exports.records)
	}
}

func TestApproveDescriptionUsesRedactedTextOnly(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	if _, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	desc := env.tracker.last.Description
	if !strings.Contains(desc, "[EMAIL_ADDRESS_REDACTED]") {
		t.Errorf("description missing sanitized text: %q", desc)
	}
	if strings.Contains(desc, "john@example.com") {
		t.Errorf("raw PII leaked into tracker payload: %q", desc)
	}
}

func TestApproveMetadataDefaults(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	if _, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	req := env.tracker.last
	if req.Summary != "Escalation from ticket #42" {
		t.Errorf("summary = %q", req.Summary)
	}
	if req.IssueType != "Bug" || req.Priority != "High" {
		t.Errorf("issue type/priority = %q/%q, want Bug/High", req.IssueType, req.Priority)
	}
}

func TestApproveSummaryTruncation(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	long := strings.Repeat("s", maxSummaryLen+40)
	if _, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{Summary: long}, NotifyMetadata{}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := len(env.tracker.last.Summary); got != maxSummaryLen {
		t.Errorf("summary length = %d, want %d", got, maxSummaryLen)
	}
}

func TestApproveIdempotent(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	first, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	second, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if first.Key != second.Key {
		t.Errorf("refs differ: %q vs %q", first.Key, second.Key)
	}
	if env.tracker.callCount() != 1 {
		t.Errorf("tracker calls = %d, want exactly 1", env.tracker.callCount())
	}
}

func TestApproveConcurrentSingleIssue(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)

	const n = 16
	refs := make([]domain.IssueRef, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("approve %d: %v", i, errs[i])
		}
		if refs[i].Key != refs[0].Key {
			t.Errorf("approve %d observed ref %q, want %q", i, refs[i].Key, refs[0].Key)
		}
	}
	if env.tracker.callCount() != 1 {
		t.Errorf("tracker calls = %d, want exactly 1", env.tracker.callCount())
	}
}

func TestApproveRequiresReadyForReview(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusProcessing, domain.StatusFailed, domain.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv()
			seedRun(t, env, "r1", status)

			_, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
			if !errors.Is(err, domain.ErrNotReviewable) {
				t.Fatalf("err = %v, want ErrNotReviewable", err)
			}
			if env.tracker.callCount() != 0 {
				t.Errorf("tracker called for %s run", status)
			}
		})
	}
}

func TestApproveUnknownRun(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Approve(context.Background(), "acme", "ghost", TrackerMetadata{}, NotifyMetadata{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveTrackerFailureIsRetryable(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)
	env.tracker.setErr(fmt.Errorf("tracker returned 503"))

	_, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
	if !errors.Is(err, domain.ErrExportFailed) {
		t.Fatalf("err = %v, want ErrExportFailed", err)
	}
	if !domain.Retryable(err) {
		t.Error("export failure should be retryable")
	}

	// The run must stay reviewable and a failed export row must exist.
	run, _ := env.repo.Get(context.Background(), "acme", "r1")
	if run.Status != domain.StatusReadyForReview {
		t.Errorf("status = %s, want ready_for_review", run.Status)
	}
	if len(env.exports.records) != 1 || env.exports.records[0].ErrorCode != "TRACKER_API_ERROR" {
		t.Errorf("export records = %+v", env.exports.records)
	}

	// Retry after the tracker recovers.
	env.tracker.setErr(nil)
	ref, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	run, _ = env.repo.Get(context.Background(), "acme", "r1")
	if run.Status != domain.StatusExported || run.ExportRef != ref.Key {
		t.Errorf("after retry: status=%s ref=%q want exported/%q", run.Status, run.ExportRef, ref.Key)
	}
}

func TestApproveNotifyFailureDoesNotAffectExport(t *testing.T) {
	env := newTestEnv()
	seedRun(t, env, "r1", domain.StatusReadyForReview)
	env.notifier.err = fmt.Errorf("slack webhook 404")

	ref, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{Enabled: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	run, _ := env.repo.Get(context.Background(), "acme", "r1")
	if run.Status != domain.StatusExported || run.ExportRef != ref.Key {
		t.Errorf("status=%s ref=%q, notification failure must not undo the export", run.Status, run.ExportRef)
	}
}

func TestApproveAfterExportReturnsStoredRef(t *testing.T) {
	env := newTestEnv()
	run := seedRun(t, env, "r1", domain.StatusExported) // carries ExportRef ESC-9

	ref, err := env.svc.Approve(context.Background(), "acme", "r1", TrackerMetadata{}, NotifyMetadata{})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ref.Key != run.ExportRef {
		t.Errorf("ref = %q, want stored %q", ref.Key, run.ExportRef)
	}
	if env.tracker.callCount() != 0 {
		t.Error("tracker called for an already exported run")
	}
}
