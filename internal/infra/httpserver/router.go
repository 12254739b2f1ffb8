package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appruns "github.com/frozoai/escalatesafe/internal/application/runs"
	auditdom "github.com/frozoai/escalatesafe/internal/domain/audit"
	exportsdom "github.com/frozoai/escalatesafe/internal/domain/exports"
	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
	"github.com/frozoai/escalatesafe/internal/middleware"
	"github.com/frozoai/escalatesafe/internal/redaction"
)

// RedactionConfigStore reads and writes per-tenant redaction settings.
type RedactionConfigStore interface {
	RedactionSettings(ctx context.Context, tenant string) (domain.RedactionSettings, error)
	SetRedactionSettings(ctx context.Context, tenant string, settings domain.RedactionSettings) error
}

type Router struct {
	runsSvc *appruns.Service
	config  RedactionConfigStore
	exports exportsdom.Repository
	audit   auditdom.Repository
}

func NewRouter(runsSvc *appruns.Service, config RedactionConfigStore, exps exportsdom.Repository, aud auditdom.Repository) http.Handler {
	r := &Router{runsSvc: runsSvc, config: config, exports: exps, audit: aud}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireTenantMatch)

		rt.Post("/runs", r.wrap(r.handleCreateRun))
		rt.Get("/runs/latest", r.wrap(r.handleLatest))
		rt.Get("/runs/{id}", r.wrap(r.handleGet))
		rt.Get("/runs/{id}/preview", r.wrap(r.handlePreview))
		rt.Post("/runs/{id}/approve", r.wrap(r.handleApprove))
		rt.Post("/runs/{id}/cancel", r.wrap(r.handleCancel))
		rt.Get("/runs/{id}/audit", r.wrap(r.handleAudit))
		rt.Get("/exports", r.wrap(r.handleExportList))
		rt.Get("/config/redaction", r.wrap(r.handleGetConfig))
		rt.Put("/config/redaction", r.wrap(r.handlePutConfig))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			writeError(w, err)
		}
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotReviewable), errors.Is(err, domain.ErrNotCancellable), errors.Is(err, domain.ErrStateConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrExportFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrTicketFetch):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     err.Error(),
		"retryable": domain.Retryable(err),
	})
}

// POST /v1/{tenant}/runs
// Body: {"ticket_id": "123", "options": {...}}
func (r *Router) handleCreateRun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body struct {
		TicketID string         `json:"ticket_id"`
		Options  domain.Options `json:"options"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := middleware.ValidateTicketID(body.TicketID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	run, err := r.runsSvc.CreateRun(req.Context(), appruns.CreateRunCommand{
		TenantID: tenant,
		TicketID: body.TicketID,
		Options:  body.Options,
	})
	if err != nil {
		return err
	}
	middleware.IncrementRuns()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(run)
}

// GET /v1/{tenant}/runs/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.runsSvc.Latest(req.Context(), tenant, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/runs/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	run, err := r.runsSvc.Get(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(run)
}

// GET /v1/{tenant}/runs/{id}/preview
// Returns the sanitized text and the detection report for human review.
func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	run, err := r.runsSvc.Get(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}
	if run.Status == domain.StatusProcessing {
		return fmt.Errorf("%w: run is still processing", domain.ErrNotReviewable)
	}
	if run.Status == domain.StatusFailed {
		return fmt.Errorf("%w: run failed: %s", domain.ErrNotReviewable, run.ErrorMessage)
	}

	resp := map[string]any{
		"run_id":        run.ID,
		"status":        run.Status,
		"redacted_text": run.RedactedText,
		"report":        run.Report,
		"artifact_url":  run.ArtifactURL,
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

// POST /v1/{tenant}/runs/{id}/approve
// Body: {"tracker": {...}, "notify": {"enabled": true}}
// Idempotent: repeat approvals return the first export reference.
func (r *Router) handleApprove(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	var body struct {
		Tracker appruns.TrackerMetadata `json:"tracker"`
		Notify  appruns.NotifyMetadata  `json:"notify"`
	}
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	ref, err := r.runsSvc.Approve(req.Context(), tenant, domain.RunID(id), body.Tracker, body.Notify)
	if err != nil {
		if errors.Is(err, domain.ErrExportFailed) {
			middleware.IncrementExportsFailed()
		}
		return err
	}
	middleware.IncrementExports()

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"status":     domain.StatusExported,
		"export_ref": ref.Key,
		"issue_url":  ref.URL,
	})
}

// POST /v1/{tenant}/runs/{id}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	if err := r.runsSvc.Cancel(req.Context(), tenant, domain.RunID(id)); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{"status": domain.StatusCancelled})
}

// GET /v1/{tenant}/runs/{id}/audit?limit=50
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	events, err := r.audit.ListByRun(req.Context(), tenant, id, limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*auditdom.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(events)
}

// GET /v1/{tenant}/exports?page=&page_size=
func (r *Router) handleExportList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.exports.Paginate(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*exportsdom.Export{}
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/config/redaction
func (r *Router) handleGetConfig(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	settings, err := r.config.RedactionSettings(req.Context(), tenant)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(settings)
}

// PUT /v1/{tenant}/config/redaction
func (r *Router) handlePutConfig(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var settings domain.RedactionSettings
	if err := json.NewDecoder(req.Body).Decode(&settings); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if settings.ConfidenceThreshold == nil {
		settings.ConfidenceThreshold = redaction.Threshold(redaction.DefaultConfidenceThreshold)
	}
	if *settings.ConfidenceThreshold < 0 || *settings.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	if err := r.config.SetRedactionSettings(req.Context(), tenant, settings); err != nil {
		return err
	}

	// Echo back what will apply to the next run.
	applied, err := r.config.RedactionSettings(req.Context(), tenant)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(applied)
}
