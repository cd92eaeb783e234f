package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/httputil"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// EscalationsHandler handles /api/v1/escalations routes
func (h *Handler) EscalationsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListEscalations(w, r)
	case http.MethodPost:
		h.CreateEscalation(w, r)
	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// EscalationRouteHandler routes /api/v1/escalations/{id} and subroutes
func (h *Handler) EscalationRouteHandler(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "/retry/") {
		h.RetryEscalationChannel(w, r)
		return
	}
	h.GetEscalation(w, r)
}

// CreateEscalation handles POST /api/v1/escalations
func (h *Handler) CreateEscalation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	esc, err := h.escalations.Create(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, esc)
}

// GetEscalation handles GET /api/v1/escalations/{id}
func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/escalations")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "escalation id required")
		return
	}

	esc, err := h.escalations.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, esc)
}

// ListEscalations handles GET /api/v1/escalations
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	req := &models.ListEscalationsRequest{
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
	req.SourceType = q.Get("source_type")
	req.Pending = q.Get("pending") == "true"

	resp, err := h.escalations.List(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// RetryEscalationChannel handles POST /api/v1/escalations/{id}/retry/{channel}
func (h *Handler) RetryEscalationChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/escalations")
	parts := strings.Split(r.URL.Path, "/retry/")
	if id == "" || len(parts) != 2 || parts[1] == "" {
		httputil.WriteError(w, http.StatusBadRequest, "escalation id and channel required")
		return
	}
	channel := parts[1]

	esc, err := h.escalations.RetryChannel(r.Context(), id, channel)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, esc)
}

// BlocklistHandler handles GET /api/v1/blocklist
func (h *Handler) BlocklistHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	activeOnly := r.URL.Query().Get("active") != "false"

	entries, err := h.escalations.ListBlocklist(r.Context(), activeOnly)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"blocklist": entries})
}
