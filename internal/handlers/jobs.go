package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/httputil"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// JobsHandler handles /api/v1/jobs routes
func (h *Handler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListJobs(w, r)
	case http.MethodPost:
		h.CreateJob(w, r)
	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// JobRouteHandler routes /api/v1/jobs/{id} and bulk subroutes
func (h *Handler) JobRouteHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/pause"):
		h.PauseJobs(w, r)
	case strings.HasSuffix(path, "/resume"):
		h.ResumeJobs(w, r)
	case strings.HasSuffix(path, "/clear"):
		h.ClearJobs(w, r)
	case strings.HasSuffix(path, "/retry"):
		h.RetryJob(w, r)
	case strings.HasSuffix(path, "/reset"):
		h.ResetJob(w, r)
	case strings.HasSuffix(path, "/max-attempts"):
		h.RaiseJobMaxAttempts(w, r)
	default:
		h.JobHandler(w, r)
	}
}

// JobHandler handles GET and DELETE on /api/v1/jobs/{id}
func (h *Handler) JobHandler(w http.ResponseWriter, r *http.Request) {
	id := extractIDFromPath(r.URL.Path, "/api/v1/jobs")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "job id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, err := h.jobs.GetJob(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := h.jobs.CancelJob(r.Context(), id); err != nil {
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// CreateJob handles POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	req := &models.ListJobsRequest{
		Page:  1,
		Limit: 50,
	}

	q := r.URL.Query()
	if page := q.Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			req.Page = p
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 100 {
			req.Limit = l
		}
	}
	req.Status = q.Get("status")

	resp, err := h.jobs.ListJobs(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// RetryJob handles POST /api/v1/jobs/{id}/retry
func (h *Handler) RetryJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/jobs")
	job, err := h.jobs.RetryJob(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}

// ResetJob handles POST /api/v1/jobs/{id}/reset
func (h *Handler) ResetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/jobs")
	job, err := h.jobs.ResetStuck(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}

// RaiseJobMaxAttempts handles POST /api/v1/jobs/{id}/max-attempts
func (h *Handler) RaiseJobMaxAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/jobs")

	var req struct {
		MaxAttempts int `json:"max_attempts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.jobs.RaiseMaxAttempts(r.Context(), id, req.MaxAttempts); err != nil {
		h.writeServiceError(w, err)
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}

// PauseJobs handles POST /api/v1/jobs/pause
func (h *Handler) PauseJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n, err := h.jobs.PauseAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BulkJobResponse{Affected: n})
}

// ResumeJobs handles POST /api/v1/jobs/resume
func (h *Handler) ResumeJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	n, err := h.jobs.ResumeAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BulkJobResponse{Affected: n})
}

// ClearJobs handles POST /api/v1/jobs/clear?scope=completed|failed|all
func (h *Handler) ClearJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		n   int64
		err error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "completed":
		n, err = h.jobs.ClearCompleted(r.Context())
	case "failed":
		n, err = h.jobs.ClearFailed(r.Context())
	case "all", "":
		n, err = h.jobs.ClearAll(r.Context())
	default:
		httputil.WriteError(w, http.StatusBadRequest, "scope must be completed, failed, or all")
		return
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.BulkJobResponse{Affected: n})
}
