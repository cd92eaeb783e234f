// Package handlers provides HTTP request handlers for the soc-lite API.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/correlator"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/escalation"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/events"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/httputil"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/jobqueue"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
)

// Handler provides HTTP handlers for the soc-lite API.
type Handler struct {
	events      *events.Service
	correlator  *correlator.Correlator
	jobs        *jobqueue.Service
	escalations *escalation.Service
	repo        repository.Repository
	log         *logging.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(
	eventSvc *events.Service,
	corr *correlator.Correlator,
	jobSvc *jobqueue.Service,
	escSvc *escalation.Service,
	repo repository.Repository,
	log *logging.Logger,
) *Handler {
	return &Handler{
		events:      eventSvc,
		correlator:  corr,
		jobs:        jobSvc,
		escalations: escSvc,
		repo:        repo,
		log:         log,
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "soclite",
	})
}

// extractIDFromPath extracts an ID from a URL path like /api/v1/jobs/{id}
func extractIDFromPath(path, prefix string) string {
	remaining := strings.TrimPrefix(path, prefix)
	remaining = strings.TrimPrefix(remaining, "/")

	parts := strings.Split(remaining, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// writeServiceError maps service and repository errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var stateErr *jobqueue.InvalidStateError
	var validationErr *models.ValidationError

	switch {
	case errors.As(err, &validationErr):
		httputil.WriteError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrTaskNotFound),
		errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, repository.ErrEscalationNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrActiveJobExists),
		errors.Is(err, repository.ErrTaskExists),
		errors.Is(err, escalation.ErrChannelAlreadyComplete),
		errors.Is(err, escalation.ErrChannelNotConfigured):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stateErr):
		httputil.WriteError(w, http.StatusConflict, stateErr.Error())
	case errors.Is(err, escalation.ErrUnknownChannel):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", logging.Err(err))
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
