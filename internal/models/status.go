package models

import "strings"

// Event status values.
const (
	EventStatusOpen   = "open"
	EventStatusClosed = "closed"
)

// Task status values.
const (
	TaskStatusOpen      = "open"
	TaskStatusInReview  = "in_review"
	TaskStatusCompleted = "completed"
	TaskStatusClosed    = "closed"
)

// Job status values.
const (
	JobStatusPending   = "pending"
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusOnHold    = "on_hold"
)

// Job target types.
const (
	JobTargetTask  = "task"
	JobTargetEvent = "event"
)

// Escalation source types.
const (
	SourceTypeWAFEvent       = "waf_event"
	SourceTypeSmartTask      = "smart_task"
	SourceTypeAttackCampaign = "attack_campaign"
)

// Escalation channels.
const (
	ChannelNotification = "notification"
	ChannelTicket       = "ticket"
	ChannelBlocklist    = "blocklist"
)

// Normalized WAF actions.
const (
	ActionBlocked = "blocked"
	ActionAllowed = "allowed"
	ActionCounted = "counted"
)

// actionAliases maps the action strings emitted by upstream WAF log
// formats to the normalized enum. The raw feeds are inconsistent about
// tense and case (BLOCK vs blocked, ALLOW vs allowed), so normalization
// happens once at the ingest boundary and nowhere else.
//
//	BLOCK / block / blocked -> blocked
//	ALLOW / allow / allowed -> allowed
//	COUNT / count / counted -> counted
var actionAliases = map[string]string{
	"block":   ActionBlocked,
	"blocked": ActionBlocked,
	"allow":   ActionAllowed,
	"allowed": ActionAllowed,
	"count":   ActionCounted,
	"counted": ActionCounted,
}

// NormalizeAction maps a raw WAF action string to the normalized enum.
// Unknown actions are returned lowercased; callers that persist actions
// must check IsValidAction, the events table only accepts the enum.
func NormalizeAction(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if normalized, ok := actionAliases[key]; ok {
		return normalized
	}
	return key
}

// IsValidAction reports whether a is one of the normalized WAF actions.
func IsValidAction(a string) bool {
	switch a {
	case ActionBlocked, ActionAllowed, ActionCounted:
		return true
	}
	return false
}

// IsValidSeverity reports whether s is within the 0-5 severity scale.
func IsValidSeverity(s int) bool {
	return s >= 0 && s <= 5
}

// IsValidSourceType reports whether t is a known escalation source type.
func IsValidSourceType(t string) bool {
	switch t {
	case SourceTypeWAFEvent, SourceTypeSmartTask, SourceTypeAttackCampaign:
		return true
	}
	return false
}

// IsValidChannel reports whether c is a known escalation channel.
func IsValidChannel(c string) bool {
	switch c {
	case ChannelNotification, ChannelTicket, ChannelBlocklist:
		return true
	}
	return false
}

// IsTerminalJobStatus reports whether a job in this status will never
// run again without operator action.
func IsTerminalJobStatus(s string) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
