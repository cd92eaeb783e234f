package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// mockStore implements Store with overridable funcs and an in-memory
// escalation row so channel outcomes can be observed.
type mockStore struct {
	createEscalationFn func(ctx context.Context, e *models.Escalation) error
	listEscalationsFn  func(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error)
	listBlocklistFn    func(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error)

	escalation *models.Escalation
	completed  map[string]string // channel -> ref
	failed     map[string]string // channel -> error message
}

func newMockStore() *mockStore {
	return &mockStore{
		completed: map[string]string{},
		failed:    map[string]string{},
	}
}

func (m *mockStore) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	if m.createEscalationFn != nil {
		return m.createEscalationFn(ctx, e)
	}
	m.escalation = e
	return nil
}

func (m *mockStore) GetEscalationByID(ctx context.Context, id string) (*models.Escalation, error) {
	esc := *m.escalation
	for ch, ref := range m.completed {
		r := ref
		now := time.Now()
		state := models.ChannelState{Completed: true, CompletedAt: &now, Ref: &r}
		applyChannelState(&esc, ch, state)
	}
	for ch, msg := range m.failed {
		e := msg
		state := models.ChannelState{Error: &e}
		applyChannelState(&esc, ch, state)
	}
	return &esc, nil
}

func applyChannelState(esc *models.Escalation, channel string, state models.ChannelState) {
	switch channel {
	case models.ChannelNotification:
		esc.Notification = state
	case models.ChannelTicket:
		esc.Ticket = state
	case models.ChannelBlocklist:
		esc.Blocklist = state
	}
}

func (m *mockStore) ListEscalations(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error) {
	return m.listEscalationsFn(ctx, req)
}

func (m *mockStore) MarkChannelComplete(ctx context.Context, id, channel, ref string) error {
	m.completed[channel] = ref
	// completion clears any earlier failure, same as the SQL update
	delete(m.failed, channel)
	return nil
}

func (m *mockStore) MarkChannelFailed(ctx context.Context, id, channel, errMsg string) error {
	m.failed[channel] = errMsg
	return nil
}

func (m *mockStore) ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error) {
	return m.listBlocklistFn(ctx, activeOnly)
}

// stubChannel is a Channel with a canned outcome.
type stubChannel struct {
	name  string
	ref   string
	err   error
	calls int
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(ctx context.Context, e *models.Escalation) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.ref, nil
}

func testLogger() *logging.Logger {
	return logging.New("error", "text")
}

func validRequest() *models.CreateEscalationRequest {
	return &models.CreateEscalationRequest{
		Title:      "Critical attack from 203.0.113.7",
		Message:    "SQL injection burst against /login",
		Severity:   4,
		SourceType: models.SourceTypeSmartTask,
		SourceID:   "task-1",
		SourceIP:   "203.0.113.7",
	}
}

func TestCreate(t *testing.T) {
	t.Run("dispatches all channels and records outcomes", func(t *testing.T) {
		store := newMockStore()
		notify := &stubChannel{name: models.ChannelNotification, ref: "soclite.notifications.send"}
		ticket := &stubChannel{name: models.ChannelTicket, ref: "TKT-1001"}
		block := &stubChannel{name: models.ChannelBlocklist, ref: "203.0.113.7"}

		svc := NewService(store, nil, testLogger(), notify, ticket, block)
		esc, err := svc.Create(context.Background(), validRequest())

		require.NoError(t, err)
		assert.Equal(t, 1, notify.calls)
		assert.Equal(t, 1, ticket.calls)
		assert.Equal(t, 1, block.calls)
		assert.True(t, esc.Notification.Completed)
		assert.True(t, esc.Ticket.Completed)
		assert.True(t, esc.Blocklist.Completed)
		require.NotNil(t, esc.Ticket.Ref)
		assert.Equal(t, "TKT-1001", *esc.Ticket.Ref)
	})

	t.Run("one channel failing never touches the others", func(t *testing.T) {
		store := newMockStore()
		notify := &stubChannel{name: models.ChannelNotification, ref: "sent"}
		ticket := &stubChannel{name: models.ChannelTicket, err: errors.New("ticketing system down")}
		block := &stubChannel{name: models.ChannelBlocklist, ref: "203.0.113.7"}

		svc := NewService(store, nil, testLogger(), notify, ticket, block)
		esc, err := svc.Create(context.Background(), validRequest())

		require.NoError(t, err)
		assert.True(t, esc.Notification.Completed)
		assert.False(t, esc.Ticket.Completed)
		require.NotNil(t, esc.Ticket.Error)
		assert.Contains(t, *esc.Ticket.Error, "ticketing system down")
		assert.True(t, esc.Blocklist.Completed)
	})

	t.Run("skips blocklist channel without a source ip", func(t *testing.T) {
		store := newMockStore()
		notify := &stubChannel{name: models.ChannelNotification, ref: "sent"}
		block := &stubChannel{name: models.ChannelBlocklist}

		req := validRequest()
		req.SourceType = models.SourceTypeAttackCampaign
		req.SourceIP = ""

		svc := NewService(store, nil, testLogger(), notify, block)
		esc, err := svc.Create(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, 1, notify.calls)
		assert.Equal(t, 0, block.calls)
		assert.False(t, esc.Blocklist.Completed)
	})

	t.Run("persists before dispatch so delivery failures lose nothing", func(t *testing.T) {
		store := newMockStore()
		ticket := &stubChannel{name: models.ChannelTicket, err: errors.New("down")}

		svc := NewService(store, nil, testLogger(), ticket)
		_, err := svc.Create(context.Background(), validRequest())

		require.NoError(t, err)
		require.NotNil(t, store.escalation)
		assert.NotEmpty(t, store.escalation.ID)
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*models.CreateEscalationRequest)
		}{
			{"missing title", func(r *models.CreateEscalationRequest) { r.Title = "" }},
			{"missing message", func(r *models.CreateEscalationRequest) { r.Message = "" }},
			{"severity out of range", func(r *models.CreateEscalationRequest) { r.Severity = 6 }},
			{"bad source type", func(r *models.CreateEscalationRequest) { r.SourceType = "alert" }},
			{"missing source id", func(r *models.CreateEscalationRequest) { r.SourceID = "" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := validRequest()
				tt.mutate(req)

				svc := NewService(newMockStore(), nil, testLogger())
				_, err := svc.Create(context.Background(), req)

				assert.Error(t, err)
			})
		}
	})
}

func TestRetryChannel(t *testing.T) {
	seed := func(store *mockStore) {
		store.escalation = &models.Escalation{
			ID:         "esc-1",
			Title:      "t",
			Message:    "m",
			Severity:   4,
			SourceType: models.SourceTypeSmartTask,
			SourceID:   "task-1",
			SourceIP:   "203.0.113.7",
		}
	}

	t.Run("re-runs an incomplete channel", func(t *testing.T) {
		store := newMockStore()
		seed(store)
		store.failed[models.ChannelTicket] = "down"

		ticket := &stubChannel{name: models.ChannelTicket, ref: "TKT-2"}
		svc := NewService(store, nil, testLogger(), ticket)

		esc, err := svc.RetryChannel(context.Background(), "esc-1", models.ChannelTicket)

		require.NoError(t, err)
		assert.Equal(t, 1, ticket.calls)
		assert.True(t, esc.Ticket.Completed)
	})

	t.Run("refuses a completed channel", func(t *testing.T) {
		store := newMockStore()
		seed(store)
		store.completed[models.ChannelTicket] = "TKT-1"

		ticket := &stubChannel{name: models.ChannelTicket, ref: "TKT-2"}
		svc := NewService(store, nil, testLogger(), ticket)

		_, err := svc.RetryChannel(context.Background(), "esc-1", models.ChannelTicket)

		assert.ErrorIs(t, err, ErrChannelAlreadyComplete)
		assert.Equal(t, 0, ticket.calls)
	})

	t.Run("rejects unknown channel names", func(t *testing.T) {
		store := newMockStore()
		seed(store)

		svc := NewService(store, nil, testLogger())
		_, err := svc.RetryChannel(context.Background(), "esc-1", "pager")

		assert.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("distinguishes a real channel the service was not built with", func(t *testing.T) {
		store := newMockStore()
		seed(store)

		// only notification wired, ticketing left unconfigured
		notify := &stubChannel{name: models.ChannelNotification, ref: "sent"}
		svc := NewService(store, nil, testLogger(), notify)

		_, err := svc.RetryChannel(context.Background(), "esc-1", models.ChannelTicket)

		assert.ErrorIs(t, err, ErrChannelNotConfigured)
		assert.NotErrorIs(t, err, ErrUnknownChannel)
	})
}
