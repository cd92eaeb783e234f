package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/httputil"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// TasksHandler handles /api/v1/tasks routes
func (h *Handler) TasksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.ListTasks(w, r)
}

// TaskRouteHandler routes /api/v1/tasks/{id} and subroutes
func (h *Handler) TaskRouteHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case strings.HasSuffix(path, "/generate"):
		h.GenerateTasks(w, r)
	case strings.HasSuffix(path, "/events"):
		h.TaskEvents(w, r)
	default:
		h.GetTask(w, r)
	}
}

// GenerateTasks handles POST /api/v1/tasks/generate. Safe to call while
// the scheduled run is in flight: generation is idempotent.
func (h *Handler) GenerateTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	summary, err := h.correlator.GenerateTasks(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/tasks")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "task id required")
		return
	}

	task, err := h.repo.GetTaskByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, task)
}

// TaskEvents handles GET /api/v1/tasks/{id}/events
func (h *Handler) TaskEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/tasks")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "task id required")
		return
	}

	// 404 for unknown tasks, empty list for tasks with no events
	if _, err := h.repo.GetTaskByID(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	taskEvents, err := h.repo.GetTaskEvents(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": taskEvents})
}

// ListTasks handles GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	req := &models.ListTasksRequest{
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
	req.SourceIP = q.Get("source_ip")

	tasks, total, err := h.repo.ListTasks(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	totalPages := (total + req.Limit - 1) / req.Limit
	httputil.WriteJSON(w, http.StatusOK, models.ListTasksResponse{
		Tasks: tasks,
		Pagination: models.Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}
