package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frozoai/escalatesafe/internal/domain/audit"
	"github.com/frozoai/escalatesafe/internal/domain/exports"
	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
	"github.com/frozoai/escalatesafe/internal/redaction"
)

//
// ==== FAKES ====
//

type fakeRepo struct {
	mu   sync.Mutex
	runs map[string]*domain.Run
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{runs: make(map[string]*domain.Run)}
}

func runKey(tenant string, id domain.RunID) string { return tenant + "/" + string(id) }

func (r *fakeRepo) Save(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[runKey(run.TenantID, run.ID)] = &cp
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runKey(tenant, id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *fakeRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Run
	for _, run := range r.runs {
		if run.TenantID == tenant {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkReady(ctx context.Context, tenant string, id domain.RunID, report *domain.RedactionReport, redactedText, artifactURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runKey(tenant, id)]
	if !ok || run.Status != domain.StatusProcessing {
		return domain.ErrStateConflict
	}
	run.Status = domain.StatusReadyForReview
	run.Report = report
	run.RedactedText = redactedText
	run.ArtifactURL = artifactURL
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, tenant string, id domain.RunID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runKey(tenant, id)]
	if !ok || run.Status != domain.StatusProcessing {
		return domain.ErrStateConflict
	}
	run.Status = domain.StatusFailed
	run.ErrorMessage = errorMessage
	return nil
}

func (r *fakeRepo) MarkCancelled(ctx context.Context, tenant string, id domain.RunID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runKey(tenant, id)]
	if !ok || (run.Status != domain.StatusProcessing && run.Status != domain.StatusReadyForReview) {
		return domain.ErrStateConflict
	}
	run.Status = domain.StatusCancelled
	return nil
}

func (r *fakeRepo) ClaimExport(ctx context.Context, tenant string, id domain.RunID, exportRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runKey(tenant, id)]
	if !ok || run.Status != domain.StatusReadyForReview || run.ExportRef != "" {
		return domain.ErrStateConflict
	}
	run.Status = domain.StatusExported
	run.ExportRef = exportRef
	return nil
}

type fakeTickets struct {
	text string
	err  error
}

func (f *fakeTickets) FetchTicketText(ctx context.Context, tenant, ticketID string, opts domain.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeTracker struct {
	mu    sync.Mutex
	calls int
	err   error
	last  domain.IssueRequest
}

func (f *fakeTracker) CreateIssue(ctx context.Context, req domain.IssueRequest) (domain.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.IssueRef{}, f.err
	}
	f.calls++
	f.last = req
	return domain.IssueRef{Key: fmt.Sprintf("ESC-%d", f.calls), URL: fmt.Sprintf("https://tracker.example.com/browse/ESC-%d", f.calls)}, nil
}

func (f *fakeTracker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTracker) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
	last  domain.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = n
	return f.err
}

type fakeConfig struct {
	settings domain.RedactionSettings
}

func (f *fakeConfig) RedactionSettings(ctx context.Context, tenant string) (domain.RedactionSettings, error) {
	return f.settings, nil
}

type fakeExports struct {
	mu      sync.Mutex
	records []*exports.Export
}

func (f *fakeExports) Save(ctx context.Context, e *exports.Export) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeExports) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*exports.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*exports.Export(nil), f.records...), nil
}

func (f *fakeExports) LatestByRun(ctx context.Context, tenant string, runID string) (*exports.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].TenantID == tenant && f.records[i].RunID == runID && f.records[i].Status == "success" {
			cp := *f.records[i]
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (f *fakeAudit) Save(ctx context.Context, e *audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeAudit) ListByRun(ctx context.Context, tenant string, runID string, limit int) ([]*audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*audit.Event
	for _, e := range f.events {
		if e.TenantID == tenant && e.RunID == runID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAudit) types(tenant, runID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.TenantID == tenant && e.RunID == runID {
			out = append(out, e.EventType)
		}
	}
	return out
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type testEnv struct {
	svc      *Service
	repo     *fakeRepo
	tickets  *fakeTickets
	tracker  *fakeTracker
	notifier *fakeNotifier
	exports  *fakeExports
	audit    *fakeAudit
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newFakeRepo(),
		tickets:  &fakeTickets{text: "Contact John Doe at john@example.com or +1-555-123-4567"},
		tracker:  &fakeTracker{},
		notifier: &fakeNotifier{},
		exports:  &fakeExports{},
		audit:    &fakeAudit{},
	}
	env.svc = &Service{
		Repo:     env.repo,
		Tickets:  env.tickets,
		Tracker:  env.tracker,
		Notifier: env.notifier,
		Config:   &fakeConfig{settings: domain.RedactionSettings{ConfidenceThreshold: redaction.Threshold(0.5)}},
		Exports:  env.exports,
		Audit:    env.audit,
		Detector: redaction.NewDetector(redaction.DefaultRegistry()),
		Redactor: redaction.NewRedactor(),
		Clock:    fixedClock{t: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)},
	}
	return env
}

// waitForStatus polls until the run leaves processing; background detection
// runs on its own goroutine.
func waitForStatus(t *testing.T, repo *fakeRepo, tenant string, id domain.RunID, want domain.Status) *domain.Run {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.Get(context.Background(), tenant, id)
		if err != nil {
			t.Fatalf("get run: %v", err)
		}
		if run.Status == want {
			return run
		}
		if run.Status != domain.StatusProcessing {
			t.Fatalf("run reached %s, want %s", run.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for run status")
	return nil
}

//
// ==== TESTS ====
//

func TestCreateRunRequiresTicketID(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateRun(context.Background(), CreateRunCommand{TenantID: "acme", TicketID: "  "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateRunInternalNotesGate(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateRun(context.Background(), CreateRunCommand{
		TenantID: "acme",
		TicketID: "42",
		Options:  domain.Options{IncludeInternalNotes: true},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput when the tenant has not opted in", err)
	}
}

func TestCreateRunProcessesToReady(t *testing.T) {
	env := newTestEnv()
	run, err := env.svc.CreateRun(context.Background(), CreateRunCommand{TenantID: "acme", TicketID: "42"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if run.Status != domain.StatusProcessing {
		t.Errorf("initial status = %s, want processing", run.Status)
	}

	ready := waitForStatus(t, env.repo, "acme", run.ID, domain.StatusReadyForReview)
	if !strings.Contains(ready.RedactedText, "[EMAIL_ADDRESS_REDACTED]") {
		t.Errorf("redacted text = %q, missing placeholder", ready.RedactedText)
	}
	if strings.Contains(ready.RedactedText, "john@example.com") {
		t.Errorf("raw PII survived: %q", ready.RedactedText)
	}
	if ready.Report == nil || ready.Report.TotalDetections != 3 {
		t.Errorf("report = %+v, want 3 detections", ready.Report)
	}

	// The completion event lands just after the status flip.
	deadline := time.Now().Add(time.Second)
	var types []string
	for time.Now().Before(deadline) {
		if types = env.audit.types("acme", string(run.ID)); len(types) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(types) != 2 || types[0] != audit.EventRunCreated || types[1] != audit.EventRedactionCompleted {
		t.Errorf("audit trail = %v", types)
	}
}

func TestCreateRunFetchFailure(t *testing.T) {
	env := newTestEnv()
	env.tickets.err = fmt.Errorf("%w: zendesk timeout", domain.ErrTicketFetch)

	run, err := env.svc.CreateRun(context.Background(), CreateRunCommand{TenantID: "acme", TicketID: "42"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	failed := waitForStatus(t, env.repo, "acme", run.ID, domain.StatusFailed)
	if !strings.Contains(failed.ErrorMessage, "ticket fetch failed") {
		t.Errorf("error message = %q", failed.ErrorMessage)
	}
}

func TestCreateRunEmptyTicketText(t *testing.T) {
	env := newTestEnv()
	env.tickets.text = "   \n"

	run, err := env.svc.CreateRun(context.Background(), CreateRunCommand{TenantID: "acme", TicketID: "42"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForStatus(t, env.repo, "acme", run.ID, domain.StatusFailed)
}

func TestCreateRunOversizedTicketText(t *testing.T) {
	env := newTestEnv()
	env.tickets.text = strings.Repeat("x", maxTicketBytes+1)

	run, err := env.svc.CreateRun(context.Background(), CreateRunCommand{TenantID: "acme", TicketID: "42"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	failed := waitForStatus(t, env.repo, "acme", run.ID, domain.StatusFailed)
	if !strings.Contains(failed.ErrorMessage, "too large") {
		t.Errorf("error message = %q", failed.ErrorMessage)
	}
}

func TestGetUnknownRun(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Get(context.Background(), "acme", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelRules(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.Status
		wantErr error
	}{
		{"processing cancellable", domain.StatusProcessing, nil},
		{"ready cancellable", domain.StatusReadyForReview, nil},
		{"exported not cancellable", domain.StatusExported, domain.ErrNotCancellable},
		{"failed not cancellable", domain.StatusFailed, domain.ErrNotCancellable},
		{"cancelled not cancellable", domain.StatusCancelled, domain.ErrNotCancellable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			seedRun(t, env, "r1", tt.status)

			err := env.svc.Cancel(context.Background(), "acme", "r1")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("cancel: %v", err)
				}
				run, _ := env.repo.Get(context.Background(), "acme", "r1")
				if run.Status != domain.StatusCancelled {
					t.Errorf("status = %s, want cancelled", run.Status)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// seedRun writes a run directly into the fake store at the given status.
func seedRun(t *testing.T, env *testEnv, id domain.RunID, status domain.Status) *domain.Run {
	t.Helper()
	run := &domain.Run{
		ID:           id,
		TenantID:     "acme",
		TicketID:     "42",
		Status:       status,
		RedactedText: "Contact [PERSON_REDACTED] at [EMAIL_ADDRESS_REDACTED]",
		Report:       &domain.RedactionReport{TotalDetections: 2, EntityCounts: map[string]int{"PERSON": 1, "EMAIL_ADDRESS": 1}},
		CreatedAt:    env.svc.Clock.Now(),
		UpdatedAt:    env.svc.Clock.Now(),
	}
	if status == domain.StatusExported {
		run.ExportRef = "ESC-9"
	}
	if err := env.repo.Save(context.Background(), run); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return run
}
