// Package models provides data models for the soc-lite core services.
package models

import (
	"time"
)

// TimeBucketLayout is the minute-precision key format used to group
// events from one source into a task.
const TimeBucketLayout = "20060102-1504"

// TimeBucket truncates t to the minute and formats it as a bucket key.
// Truncation is exact: two events straddling a minute boundary land in
// different buckets and therefore different tasks. That matches the
// upstream grouping and is intentionally not smoothed over.
func TimeBucket(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(TimeBucketLayout)
}

// BucketBounds returns the half-open [start, end) interval covered by a
// bucket key. The error from Parse only fires on malformed keys, which
// only occur if the tasks table was edited by hand.
func BucketBounds(bucket string) (time.Time, time.Time, error) {
	start, err := time.Parse(TimeBucketLayout, bucket)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Minute), nil
}

// Event is a raw WAF log record.
type Event struct {
	ID              string     `json:"id"`
	SourceIP        string     `json:"source_ip"`
	Country         string     `json:"country,omitempty"`
	URI             string     `json:"uri"`
	HTTPMethod      string     `json:"http_method"`
	RuleName        string     `json:"rule_name"`
	UserAgent       string     `json:"user_agent,omitempty"`
	Action          string     `json:"action"` // blocked, allowed, counted
	EventTime       time.Time  `json:"event_time"`
	Status          string     `json:"status"`             // open, closed
	Severity        *int       `json:"severity,omitempty"` // 0-5, nil until analyzed
	Analysis        *string    `json:"analysis,omitempty"`
	Recommendations *string    `json:"recommendations,omitempty"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
	AnalyzedBy      *string    `json:"analyzed_by,omitempty"`
	TaskID          *string    `json:"task_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Task is a correlated unit of work: one source IP active during one
// minute bucket.
type Task struct {
	ID              string     `json:"id"`
	SourceIP        string     `json:"source_ip"`
	TimeBucket      string     `json:"time_bucket"` // YYYYMMDD-HHMM
	Status          string     `json:"status"`      // open, in_review, completed, closed
	EventCount      int        `json:"event_count"`
	Severity        *int       `json:"severity,omitempty"`
	AttackType      *string    `json:"attack_type,omitempty"`
	Analysis        *string    `json:"analysis,omitempty"`
	Recommendations *string    `json:"recommendations,omitempty"`
	JobStatus       *string    `json:"job_status,omitempty"` // mirror of the latest analysis job
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// TaskEvent links an event to the task that owns it. Immutable once
// written.
type TaskEvent struct {
	TaskID    string    `json:"task_id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is one schedulable unit of asynchronous analysis work.
type Job struct {
	ID          string     `json:"id"`
	TargetType  string     `json:"target_type"` // task, event
	TargetID    string     `json:"target_id"`
	Status      string     `json:"status"` // pending, queued, running, completed, failed, on_hold
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  *int64     `json:"duration_ms,omitempty"`
}

// ChannelState is the per-channel completion triple on an escalation.
// Each channel's state is independent; a failure in one never touches
// another.
type ChannelState struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Ref         *string    `json:"ref,omitempty"` // external id from the channel system
	Error       *string    `json:"error,omitempty"`
}

// Escalation records that a finding requires external action, tracking
// delivery across the notification, ticket, and blocklist channels.
type Escalation struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Detail       map[string]any `json:"detail,omitempty"`
	Severity     int            `json:"severity"`
	SourceType   string         `json:"source_type"` // waf_event, smart_task, attack_campaign
	SourceID     string         `json:"source_id"`
	SourceIP     string         `json:"source_ip,omitempty"`
	Notification ChannelState   `json:"notification"`
	Ticket       ChannelState   `json:"ticket"`
	Blocklist    ChannelState   `json:"blocklist"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Channel returns the state for the named channel.
func (e *Escalation) Channel(name string) ChannelState {
	switch name {
	case ChannelNotification:
		return e.Notification
	case ChannelTicket:
		return e.Ticket
	case ChannelBlocklist:
		return e.Blocklist
	}
	return ChannelState{}
}

// BlocklistEntry is an IP on the network blocklist. One row per IP:
// re-blocking increments block_count instead of inserting a duplicate.
type BlocklistEntry struct {
	IP             string    `json:"ip"`
	Severity       int       `json:"severity"`
	EscalationID   string    `json:"escalation_id"` // most recent escalation that blocked this IP
	BlockCount     int       `json:"block_count"`
	IsActive       bool      `json:"is_active"`
	FirstBlockedAt time.Time `json:"first_blocked_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AnalysisResult is what the analysis service returns for a task or
// event. Field names follow the upstream agent payload.
type AnalysisResult struct {
	SeverityRating     int    `json:"severity_rating"` // 0-5
	AttackType         string `json:"attack_type"`
	RatingReason       string `json:"rating_reason,omitempty"`
	SecurityAnalysis   string `json:"security_analysis"`
	RecommendedActions string `json:"recommended_actions"`
}

// GenerateSummary is the result of one correlation run.
type GenerateSummary struct {
	TasksCreated  int `json:"tasks_created"`
	JobsCreated   int `json:"jobs_created"`
	EventsLinked  int `json:"events_linked"`
	SourceIPs     int `json:"source_ips_processed"`
	GroupsSkipped int `json:"groups_skipped"`
	GroupsFailed  int `json:"groups_failed"`
}

// EventGroup is one (source IP, time bucket) aggregate from the
// correlation grouping query.
type EventGroup struct {
	SourceIP   string    `json:"source_ip"`
	TimeBucket string    `json:"time_bucket"`
	EventCount int       `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// CreateEventRequest is the ingest payload for a raw WAF event.
type CreateEventRequest struct {
	SourceIP   string    `json:"source_ip"`
	Country    string    `json:"country,omitempty"`
	URI        string    `json:"uri"`
	HTTPMethod string    `json:"http_method"`
	RuleName   string    `json:"rule_name"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Action     string    `json:"action"`
	EventTime  time.Time `json:"event_time"`
}

// ListEventsRequest contains filters for listing events.
type ListEventsRequest struct {
	Page     int
	Limit    int
	Status   string
	SourceIP string
	Unlinked bool // only events with no task reference
}

// ListEventsResponse contains paginated event results.
type ListEventsResponse struct {
	Events     []*Event   `json:"events"`
	Pagination Pagination `json:"pagination"`
}

// ListTasksRequest contains filters for listing tasks.
type ListTasksRequest struct {
	Page     int
	Limit    int
	Status   string
	SourceIP string
}

// ListTasksResponse contains paginated task results.
type ListTasksResponse struct {
	Tasks      []*Task    `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// CreateJobRequest is the API request to queue an analysis job.
type CreateJobRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Priority   int    `json:"priority"`
}

// ListJobsRequest contains filters for listing jobs.
type ListJobsRequest struct {
	Page   int
	Limit  int
	Status string
}

// ListJobsResponse contains paginated job results.
type ListJobsResponse struct {
	Jobs       []*Job     `json:"jobs"`
	Pagination Pagination `json:"pagination"`
}

// BulkJobResponse reports how many rows a bulk job operation touched.
// Zero matched rows is a success, not an error.
type BulkJobResponse struct {
	Affected int64 `json:"affected"`
}

// CreateEscalationRequest is the API request to record a finding.
type CreateEscalationRequest struct {
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Detail     map[string]any `json:"detail_payload,omitempty"`
	Severity   int            `json:"severity"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	SourceIP   string         `json:"source_ip,omitempty"`
}

// ListEscalationsRequest contains filters for listing escalations.
type ListEscalationsRequest struct {
	Page       int
	Limit      int
	SourceType string
	Pending    bool // only escalations with at least one incomplete channel
}

// ListEscalationsResponse contains paginated escalation results.
type ListEscalationsResponse struct {
	Escalations []*Escalation `json:"escalations"`
	Pagination  Pagination    `json:"pagination"`
}

// Pagination represents pagination metadata.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
