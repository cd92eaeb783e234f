// Package escalation records findings that need external action and
// drives delivery across the notification, ticket, and blocklist
// channels.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/metrics"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/natsmsg"
)

var (
	// ErrUnknownChannel is returned when a retry names a channel that
	// does not exist.
	ErrUnknownChannel = errors.New("unknown escalation channel")

	// ErrChannelNotConfigured is returned when a retry names a real
	// channel the service was not built with, such as ticketing
	// without a webhook URL.
	ErrChannelNotConfigured = errors.New("escalation channel not configured")

	// ErrChannelAlreadyComplete is returned when a retry targets a
	// channel that already delivered.
	ErrChannelAlreadyComplete = errors.New("channel already completed")
)

// Store is the persistence the escalation service needs. Satisfied by
// repository.Repository.
type Store interface {
	CreateEscalation(ctx context.Context, e *models.Escalation) error
	GetEscalationByID(ctx context.Context, id string) (*models.Escalation, error)
	ListEscalations(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error)
	MarkChannelComplete(ctx context.Context, id, channel, ref string) error
	MarkChannelFailed(ctx context.Context, id, channel, errMsg string) error
	ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error)
}

// Service records escalations and dispatches them to channels.
type Service struct {
	repo     Store
	channels []Channel
	pub      natsmsg.Publisher
	log      *logging.Logger
}

// NewService creates an escalation service. pub may be nil when NATS is
// disabled; channels run in the order given.
func NewService(repo Store, pub natsmsg.Publisher, log *logging.Logger, channels ...Channel) *Service {
	return &Service{repo: repo, channels: channels, pub: pub, log: log}
}

// Create validates and persists an escalation, then dispatches it to
// every channel. The escalation row is committed before any delivery
// runs, so a channel outage never loses the record. Channel outcomes are
// written to the per-channel column triples; the returned escalation
// reflects them.
func (s *Service) Create(ctx context.Context, req *models.CreateEscalationRequest) (*models.Escalation, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate escalation id: %w", err)
	}

	esc := &models.Escalation{
		ID:         id.String(),
		Title:      req.Title,
		Message:    req.Message,
		Detail:     req.Detail,
		Severity:   req.Severity,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		SourceIP:   req.SourceIP,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.CreateEscalation(ctx, esc); err != nil {
		return nil, err
	}

	metrics.EscalationsCreated.WithLabelValues(esc.SourceType).Inc()
	s.log.Info("escalation created",
		"escalation_id", esc.ID,
		"severity", esc.Severity,
		"source_type", esc.SourceType,
		"source_ip", esc.SourceIP)

	if s.pub != nil {
		evt := natsmsg.EscalationCreatedEvent{
			EscalationID: esc.ID,
			Title:        esc.Title,
			Severity:     esc.Severity,
			SourceType:   esc.SourceType,
			SourceID:     esc.SourceID,
			SourceIP:     esc.SourceIP,
			CreatedAt:    esc.CreatedAt,
		}
		if err := s.pub.PublishJSON(ctx, natsmsg.SubjectEscalationsCreated, evt); err != nil {
			s.log.Warn("failed to announce escalation", logging.Err(err))
		}
	}

	s.dispatch(ctx, esc)

	return s.repo.GetEscalationByID(ctx, esc.ID)
}

// Get retrieves an escalation by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Escalation, error) {
	return s.repo.GetEscalationByID(ctx, id)
}

// List retrieves a paginated list of escalations.
func (s *Service) List(ctx context.Context, req *models.ListEscalationsRequest) (*models.ListEscalationsResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 50
	}

	escalations, total, err := s.repo.ListEscalations(ctx, req)
	if err != nil {
		return nil, err
	}

	totalPages := (total + req.Limit - 1) / req.Limit

	return &models.ListEscalationsResponse{
		Escalations: escalations,
		Pagination: models.Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// RetryChannel re-runs delivery for one incomplete channel. Completed
// channels are never re-sent; the other channels are untouched.
func (s *Service) RetryChannel(ctx context.Context, id, channel string) (*models.Escalation, error) {
	if !models.IsValidChannel(channel) {
		return nil, ErrUnknownChannel
	}

	esc, err := s.repo.GetEscalationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if esc.Channel(channel).Completed {
		return nil, ErrChannelAlreadyComplete
	}

	ch := s.channel(channel)
	if ch == nil {
		return nil, ErrChannelNotConfigured
	}

	s.deliver(ctx, esc, ch)

	return s.repo.GetEscalationByID(ctx, id)
}

// ListBlocklist retrieves blocklist entries.
func (s *Service) ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error) {
	return s.repo.ListBlocklist(ctx, activeOnly)
}

// dispatch runs every applicable channel. The blocklist channel only
// applies when the escalation carries a source IP; campaign-level
// escalations without one simply never run it.
func (s *Service) dispatch(ctx context.Context, esc *models.Escalation) {
	for _, ch := range s.channels {
		if ch.Name() == models.ChannelBlocklist && esc.SourceIP == "" {
			continue
		}
		s.deliver(ctx, esc, ch)
	}
}

// deliver runs one channel and records its outcome. Recording failures
// are logged; they must not stop the remaining channels.
func (s *Service) deliver(ctx context.Context, esc *models.Escalation, ch Channel) {
	ref, err := ch.Send(ctx, esc)
	if err != nil {
		metrics.ChannelDeliveries.WithLabelValues(ch.Name(), "failed").Inc()
		s.log.Warn("channel delivery failed",
			"escalation_id", esc.ID,
			"channel", ch.Name(),
			logging.Err(err))
		if markErr := s.repo.MarkChannelFailed(ctx, esc.ID, ch.Name(), err.Error()); markErr != nil {
			s.log.Error("failed to record channel failure",
				"escalation_id", esc.ID,
				"channel", ch.Name(),
				logging.Err(markErr))
		}
		return
	}

	metrics.ChannelDeliveries.WithLabelValues(ch.Name(), "delivered").Inc()
	if markErr := s.repo.MarkChannelComplete(ctx, esc.ID, ch.Name(), ref); markErr != nil {
		s.log.Error("failed to record channel completion",
			"escalation_id", esc.ID,
			"channel", ch.Name(),
			logging.Err(markErr))
	}
}

func (s *Service) channel(name string) Channel {
	for _, ch := range s.channels {
		if ch.Name() == name {
			return ch
		}
	}
	return nil
}

func validateCreateRequest(req *models.CreateEscalationRequest) error {
	if req.Title == "" {
		return models.Invalidf("title is required")
	}
	if req.Message == "" {
		return models.Invalidf("message is required")
	}
	if !models.IsValidSeverity(req.Severity) {
		return models.Invalidf("severity must be between 0 and 5")
	}
	if !models.IsValidSourceType(req.SourceType) {
		return models.Invalidf("invalid source type: %s", req.SourceType)
	}
	if req.SourceID == "" {
		return models.Invalidf("source id is required")
	}
	return nil
}
