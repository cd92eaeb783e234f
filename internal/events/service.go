// Package events handles WAF event ingest and queries.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
)

// Service validates and stores incoming WAF events.
type Service struct {
	repo repository.Repository
	log  *logging.Logger
}

// NewService creates a new event service.
func NewService(repo repository.Repository, log *logging.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create validates and stores one WAF event. The action string is
// normalized at this boundary; everything downstream sees the canonical
// enum.
func (s *Service) Create(ctx context.Context, req *models.CreateEventRequest) (*models.Event, error) {
	if req.SourceIP == "" {
		return nil, models.Invalidf("source ip is required")
	}
	if req.URI == "" {
		return nil, models.Invalidf("uri is required")
	}
	if req.HTTPMethod == "" {
		return nil, models.Invalidf("http method is required")
	}
	if req.RuleName == "" {
		return nil, models.Invalidf("rule name is required")
	}
	if req.Action == "" {
		return nil, models.Invalidf("action is required")
	}
	action := models.NormalizeAction(req.Action)
	if !models.IsValidAction(action) {
		return nil, models.Invalidf("unknown action: %s", req.Action)
	}

	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = time.Now()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}

	event := &models.Event{
		ID:         id.String(),
		SourceIP:   req.SourceIP,
		Country:    req.Country,
		URI:        req.URI,
		HTTPMethod: req.HTTPMethod,
		RuleName:   req.RuleName,
		UserAgent:  req.UserAgent,
		Action:     action,
		EventTime:  eventTime,
		Status:     models.EventStatusOpen,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

// Get retrieves an event by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	return s.repo.GetEventByID(ctx, id)
}

// List retrieves a paginated list of events.
func (s *Service) List(ctx context.Context, req *models.ListEventsRequest) (*models.ListEventsResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 50
	}

	events, total, err := s.repo.ListEvents(ctx, req)
	if err != nil {
		return nil, err
	}

	totalPages := (total + req.Limit - 1) / req.Limit

	return &models.ListEventsResponse{
		Events: events,
		Pagination: models.Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
