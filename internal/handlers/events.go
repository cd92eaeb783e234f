package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/httputil"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// EventsHandler handles /api/v1/events routes
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListEvents(w, r)
	case http.MethodPost:
		h.CreateEvent(w, r)
	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// EventHandler handles /api/v1/events/{id} routes
func (h *Handler) EventHandler(w http.ResponseWriter, r *http.Request) {
	id := extractIDFromPath(r.URL.Path, "/api/v1/events")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "event id required")
		return
	}

	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, event)
}

// CreateEvent handles POST /api/v1/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.events.Create(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	req := &models.ListEventsRequest{
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
	req.Unlinked = q.Get("unlinked") == "true"

	resp, err := h.events.List(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
