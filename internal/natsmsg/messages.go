package natsmsg

import "time"

// EscalationCreatedEvent is published on SubjectEscalationsCreated when a
// new escalation is recorded, before any channel delivery runs.
type EscalationCreatedEvent struct {
	EscalationID string    `json:"escalation_id"`
	Title        string    `json:"title"`
	Severity     int       `json:"severity"`
	SourceType   string    `json:"source_type"`
	SourceID     string    `json:"source_id"`
	SourceIP     string    `json:"source_ip,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationMessage is the operator-facing notification payload
// published on SubjectNotifications.
type NotificationMessage struct {
	EscalationID string         `json:"escalation_id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Severity     int            `json:"severity"`
	SourceType   string         `json:"source_type"`
	SourceIP     string         `json:"source_ip,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

// BlocklistUpdatedEvent is published on SubjectBlocklistUpdated after an
// IP is added to or refreshed on the blocklist.
type BlocklistUpdatedEvent struct {
	IP           string    `json:"ip"`
	Severity     int       `json:"severity"`
	BlockCount   int       `json:"block_count"`
	EscalationID string    `json:"escalation_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}
