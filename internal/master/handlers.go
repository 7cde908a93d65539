package master

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/allocator"
	"github.com/vizsched/vizsched/internal/job"
	"github.com/vizsched/vizsched/internal/registry"
)

// Handler holds the scheduler's collaborators and implements the four
// routes spec.md §4.4/§6 enumerates. Every method acquires no state beyond
// its parameters — the registry and allocator are the only shared mutable
// collaborators, exactly as spec.md §5 requires.
type Handler struct {
	Allocator    allocator.Allocator
	Registry     registry.Registry
	Logger       *zap.Logger
	Metrics      *Metrics
	ProxyBaseURL string
	JobDuration  time.Duration
}

// Healthz always returns 200 (spec.md §6).
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type startResponse struct {
	JobID string `json:"job_id"`
}

// Start implements POST /start: parse body, allocate, insert row, 201.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromCtx(ctx)
	token := tokenFromCtx(ctx)

	var payload allocator.CreateJobPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	jobID, err := h.Allocator.CreateJob(ctx, token, payload)
	if err != nil {
		h.Metrics.allocatorErrors.WithLabelValues("create_job").Inc()
		h.Logger.Error("create job failed", zap.Error(err), zap.String("user", userID))
		ErrInternal(w)
		return
	}

	now := time.Now().UTC()
	row := job.Job{
		ID:        jobID,
		User:      userID,
		StartTime: now,
		EndTime:   now.Add(h.JobDuration),
		Host:      "",
	}
	if err := h.Registry.Insert(ctx, row); err != nil {
		h.Logger.Error("insert job row failed", zap.Error(err), zap.String("job_id", jobID))
		ErrInternal(w)
		return
	}

	h.Metrics.jobsStarted.Inc()
	Created(w, startResponse{JobID: jobID})
}

// Stop implements POST /stop/{job_id}: load, check ownership, destroy, delete.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		ErrBadRequest(w, "missing job_id")
		return
	}

	row, err := h.Registry.FetchByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.Logger.Error("fetch job row failed", zap.Error(err), zap.String("job_id", jobID))
		ErrInternal(w)
		return
	}

	if authEnabledFromCtx(ctx) && row.User != userIDFromCtx(ctx) {
		ErrUnauthorized(w)
		return
	}

	if err := h.Allocator.DestroyJob(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, allocator.ErrInvalidJobID):
			ErrBadRequest(w, "invalid job id")
			return
		case errors.Is(err, allocator.ErrUnsupported):
			ErrBadRequest(w, "stop not supported by this allocator")
			return
		default:
			h.Metrics.allocatorErrors.WithLabelValues("destroy_job").Inc()
			h.Logger.Error("destroy job failed", zap.Error(err), zap.String("job_id", jobID))
			ErrInternal(w)
			return
		}
	}

	if err := h.Registry.Delete(ctx, jobID); err != nil && !errors.Is(err, registry.ErrNotFound) {
		h.Logger.Error("delete job row failed", zap.Error(err), zap.String("job_id", jobID))
		ErrInternal(w)
		return
	}

	h.Metrics.jobsStopped.Inc()
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	Ready   bool   `json:"ready"`
	EndTime string `json:"end_time"`
	JobURL  string `json:"job_url,omitempty"`
}

// Status implements GET /status/{job_id}: load, check ownership, probe
// allocator, persist host on first readiness, respond with the canonical
// shape spec.md §9 specifies (ready/end_time/job_url — never the legacy
// job_running/brayns_started shape).
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		ErrBadRequest(w, "missing job_id")
		return
	}

	row, err := h.Registry.FetchByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.Logger.Error("fetch job row failed", zap.Error(err), zap.String("job_id", jobID))
		ErrInternal(w)
		return
	}

	if authEnabledFromCtx(ctx) && row.User != userIDFromCtx(ctx) {
		ErrUnauthorized(w)
		return
	}

	details, err := h.Allocator.GetJobDetails(ctx, tokenFromCtx(ctx), jobID)
	if err != nil {
		if errors.Is(err, allocator.ErrJobNotFound) {
			ErrNotFound(w)
			return
		}
		h.Metrics.allocatorErrors.WithLabelValues("get_job_details").Inc()
		h.Logger.Error("get job details failed", zap.Error(err), zap.String("job_id", jobID))
		ErrInternal(w)
		return
	}

	if details.Host != "" && row.Host == "" {
		if err := h.Registry.UpdateHost(ctx, jobID, details.Host); err != nil {
			h.Logger.Error("update host failed", zap.Error(err), zap.String("job_id", jobID))
			ErrInternal(w)
			return
		}
		row.Host = details.Host
	}

	endTime := row.EndTime
	if !details.EndTime.IsZero() {
		endTime = details.EndTime
	}

	resp := statusResponse{
		Ready:   row.Host != "",
		EndTime: endTime.UTC().Format(time.RFC3339),
	}
	if resp.Ready {
		resp.JobURL = h.ProxyBaseURL + "/" + jobID + "/renderer"
	}
	Ok(w, resp)
}
