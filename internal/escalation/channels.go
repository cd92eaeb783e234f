package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/natsmsg"
)

// Channel delivers one escalation to one external system. Send returns
// an external reference (message id, ticket number, blocked IP) on
// success. Channels never see each other: a failure in one is recorded
// on its own column triple and the others still run.
type Channel interface {
	Name() string
	Send(ctx context.Context, e *models.Escalation) (string, error)
}

// NotificationChannel publishes operator notifications over NATS.
type NotificationChannel struct {
	pub natsmsg.Publisher
}

// NewNotificationChannel creates a NATS-backed notification channel.
func NewNotificationChannel(pub natsmsg.Publisher) *NotificationChannel {
	return &NotificationChannel{pub: pub}
}

func (c *NotificationChannel) Name() string { return models.ChannelNotification }

// Send publishes the escalation as a notification message. The ref is
// the subject the message went out on; NATS core has no message ids.
func (c *NotificationChannel) Send(ctx context.Context, e *models.Escalation) (string, error) {
	msg := natsmsg.NotificationMessage{
		EscalationID: e.ID,
		Title:        e.Title,
		Message:      e.Message,
		Severity:     e.Severity,
		SourceType:   e.SourceType,
		SourceIP:     e.SourceIP,
		Detail:       e.Detail,
		SentAt:       time.Now(),
	}

	if err := c.pub.PublishJSON(ctx, natsmsg.SubjectNotifications, msg); err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}

	return natsmsg.SubjectNotifications, nil
}

// TicketChannel opens incident tickets through an HTTP webhook.
type TicketChannel struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTicketChannel creates a webhook-backed ticketing channel.
func NewTicketChannel(baseURL, apiKey string, timeout time.Duration) *TicketChannel {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TicketChannel{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *TicketChannel) Name() string { return models.ChannelTicket }

// Send posts a ticket creation request and returns the ticket id.
func (c *TicketChannel) Send(ctx context.Context, e *models.Escalation) (string, error) {
	payload := struct {
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Severity    int            `json:"severity"`
		SourceType  string         `json:"source_type"`
		SourceIP    string         `json:"source_ip,omitempty"`
		Detail      map[string]any `json:"detail,omitempty"`
		ExternalID  string         `json:"external_id"`
	}{
		Title:       e.Title,
		Description: e.Message,
		Severity:    e.Severity,
		SourceType:  e.SourceType,
		SourceIP:    e.SourceIP,
		Detail:      e.Detail,
		ExternalID:  e.ID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket payload: %w", err)
	}

	url := c.baseURL + "/tickets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var ticketResp struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticketResp); err != nil {
		return "", fmt.Errorf("failed to decode ticket response: %w", err)
	}
	if ticketResp.TicketID == "" {
		return "", fmt.Errorf("ticketing system returned no ticket id")
	}

	return ticketResp.TicketID, nil
}

// BlocklistStore is the persistence the blocklist channel needs.
// Satisfied by repository.Repository.
type BlocklistStore interface {
	UpsertBlocklistEntry(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error)
}

// BlocklistChannel adds the escalation's source IP to the network
// blocklist. The Postgres row is the source of truth; the Redis set is a
// read cache for enforcement points, so a cache write failure is logged
// but does not fail the channel.
type BlocklistChannel struct {
	repo  BlocklistStore
	cache *BlockCache
	pub   natsmsg.Publisher
	log   *logging.Logger
}

// NewBlocklistChannel creates the blocklist channel. cache and pub may
// be nil when Redis or NATS is disabled.
func NewBlocklistChannel(repo BlocklistStore, cache *BlockCache, pub natsmsg.Publisher, log *logging.Logger) *BlocklistChannel {
	return &BlocklistChannel{repo: repo, cache: cache, pub: pub, log: log}
}

func (c *BlocklistChannel) Name() string { return models.ChannelBlocklist }

// Send upserts the blocklist row for the escalation's source IP. A
// repeat offender gets its block_count incremented and is reactivated
// rather than duplicated. The ref is the blocked IP.
func (c *BlocklistChannel) Send(ctx context.Context, e *models.Escalation) (string, error) {
	if e.SourceIP == "" {
		return "", fmt.Errorf("escalation has no source ip to block")
	}

	entry, err := c.repo.UpsertBlocklistEntry(ctx, e.SourceIP, e.Severity, e.ID)
	if err != nil {
		return "", fmt.Errorf("failed to upsert blocklist entry: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Add(ctx, entry.IP); err != nil {
			c.log.Warn("failed to update blocklist cache",
				"ip", entry.IP, logging.Err(err))
		}
	}

	if c.pub != nil {
		evt := natsmsg.BlocklistUpdatedEvent{
			IP:           entry.IP,
			Severity:     entry.Severity,
			BlockCount:   entry.BlockCount,
			EscalationID: entry.EscalationID,
			UpdatedAt:    entry.UpdatedAt,
		}
		if err := c.pub.PublishJSON(ctx, natsmsg.SubjectBlocklistUpdated, evt); err != nil {
			c.log.Warn("failed to publish blocklist update",
				"ip", entry.IP, logging.Err(err))
		}
	}

	return entry.IP, nil
}
