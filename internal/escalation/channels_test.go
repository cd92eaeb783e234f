package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/natsmsg"
)

// capturePublisher records published messages.
type capturePublisher struct {
	subjects []string
	payloads []any
	err      error
}

func (p *capturePublisher) PublishJSON(ctx context.Context, subject string, data any) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func sampleEscalation() *models.Escalation {
	return &models.Escalation{
		ID:         "esc-1",
		Title:      "Critical attack from 203.0.113.7",
		Message:    "SQL injection burst against /login",
		Severity:   5,
		SourceType: models.SourceTypeSmartTask,
		SourceID:   "task-1",
		SourceIP:   "203.0.113.7",
	}
}

func TestNotificationChannel(t *testing.T) {
	pub := &capturePublisher{}
	ch := NewNotificationChannel(pub)

	ref, err := ch.Send(context.Background(), sampleEscalation())

	require.NoError(t, err)
	assert.Equal(t, natsmsg.SubjectNotifications, ref)
	require.Len(t, pub.payloads, 1)

	msg, ok := pub.payloads[0].(natsmsg.NotificationMessage)
	require.True(t, ok)
	assert.Equal(t, "esc-1", msg.EscalationID)
	assert.Equal(t, 5, msg.Severity)
}

func TestTicketChannel(t *testing.T) {
	t.Run("creates ticket and returns its id", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/tickets", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "esc-1", payload["external_id"])

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"ticket_id": "TKT-42"})
		}))
		defer srv.Close()

		ch := NewTicketChannel(srv.URL, "secret", 0)
		ref, err := ch.Send(context.Background(), sampleEscalation())

		require.NoError(t, err)
		assert.Equal(t, "TKT-42", ref)
		assert.Equal(t, "Bearer secret", gotAuth)
	})

	t.Run("fails on non-2xx response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		ch := NewTicketChannel(srv.URL, "", 0)
		_, err := ch.Send(context.Background(), sampleEscalation())

		assert.Error(t, err)
	})

	t.Run("fails when response has no ticket id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer srv.Close()

		ch := NewTicketChannel(srv.URL, "", 0)
		_, err := ch.Send(context.Background(), sampleEscalation())

		assert.Error(t, err)
	})
}

type stubBlocklistStore struct {
	entry *models.BlocklistEntry
	err   error
}

func (s *stubBlocklistStore) UpsertBlocklistEntry(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entry, nil
}

func TestBlocklistChannel(t *testing.T) {
	t.Run("upserts entry and caches the ip", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cache := NewBlockCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

		store := &stubBlocklistStore{entry: &models.BlocklistEntry{
			IP:           "203.0.113.7",
			Severity:     5,
			EscalationID: "esc-1",
			BlockCount:   2,
			IsActive:     true,
		}}
		pub := &capturePublisher{}

		ch := NewBlocklistChannel(store, cache, pub, testLogger())
		ref, err := ch.Send(context.Background(), sampleEscalation())

		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", ref)

		blocked, err := cache.Contains(context.Background(), "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, blocked)

		require.Len(t, pub.subjects, 1)
		assert.Equal(t, natsmsg.SubjectBlocklistUpdated, pub.subjects[0])
	})

	t.Run("rejects escalation without a source ip", func(t *testing.T) {
		ch := NewBlocklistChannel(&stubBlocklistStore{}, nil, nil, testLogger())

		esc := sampleEscalation()
		esc.SourceIP = ""
		_, err := ch.Send(context.Background(), esc)

		assert.Error(t, err)
	})

	t.Run("cache failure does not fail the channel", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache := NewBlockCacheWithClient(client)
		mr.Close()

		store := &stubBlocklistStore{entry: &models.BlocklistEntry{
			IP:           "203.0.113.7",
			Severity:     5,
			EscalationID: "esc-1",
			BlockCount:   1,
			IsActive:     true,
		}}

		ch := NewBlocklistChannel(store, cache, nil, testLogger())
		ref, err := ch.Send(context.Background(), sampleEscalation())

		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", ref)
	})
}

func TestBlockCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewBlockCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, cache.Add(ctx, "198.51.100.1"))

	ok, err := cache.Contains(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Remove(ctx, "198.51.100.1"))

	ok, err = cache.Contains(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, ok)
}
