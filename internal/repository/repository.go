package repository

import (
	"context"
	"errors"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrEscalationNotFound = errors.New("escalation not found")

	// ErrTaskExists signals the (source_ip, time_bucket) uniqueness guard
	// fired. Correlation treats it as "another run got here first", not
	// as a failure.
	ErrTaskExists = errors.New("task already exists for source and time bucket")

	// ErrActiveJobExists signals the at-most-one-active-job-per-target
	// invariant rejected an insert.
	ErrActiveJobExists = errors.New("target already has an active job")

	// ErrNoPendingJobs is returned by ClaimNextJob when the queue is
	// empty or fully on hold.
	ErrNoPendingJobs = errors.New("no pending jobs")
)

// AnalysisUpdate carries an analysis result plus the statuses triage
// assigned for the task and its linked events.
type AnalysisUpdate struct {
	Result      *models.AnalysisResult
	TaskStatus  string
	EventStatus string
	AnalyzedBy  string
}

// Repository defines persistence for events, tasks, jobs, escalations,
// and the blocklist.
type Repository interface {
	// Event operations
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.Event, int, error)

	// Correlation operations
	ListUnlinkedEventGroups(ctx context.Context) ([]*models.EventGroup, error)
	TaskExists(ctx context.Context, sourceIP, timeBucket string) (bool, error)
	// CreateTaskWithJob runs the four correlation writes as one
	// transaction: re-fetch the bucket's events, insert the task, link
	// the events, queue the job. Returns the number of events linked.
	CreateTaskWithJob(ctx context.Context, task *models.Task, job *models.Job) (int, error)

	// Task operations
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, req *models.ListTasksRequest) ([]*models.Task, int, error)
	GetTaskEvents(ctx context.Context, taskID string) ([]*models.Event, error)
	SetTaskJobStatus(ctx context.Context, taskID, jobStatus string) error

	// Job operations
	CreateJob(ctx context.Context, j *models.Job) error
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, req *models.ListJobsRequest) ([]*models.Job, int, error)
	HasActiveJob(ctx context.Context, targetType, targetID string) (bool, error)
	// ClaimNextJob atomically selects the highest-priority pending job
	// (FIFO within a tier) and moves it to running.
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	// TransitionJob moves a job from one of the given statuses to the
	// target status in a single conditional update. Returns false when
	// the job exists but is not in an allowed status.
	TransitionJob(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error)
	// CompleteJob moves running -> completed, stamps completion time and
	// duration, and applies the analysis result to the job's target in
	// the same transaction. A failed analysis write rolls the completion
	// back, leaving the job running. upd may be nil for jobs with no
	// result to record. Returns false when the job is not running.
	CompleteJob(ctx context.Context, id string, upd *AnalysisUpdate) (*models.Job, bool, error)
	// FailJob increments the lifetime attempts counter and moves the job
	// back to pending, or to failed once attempts reach max_attempts.
	// Returns false when the job is not running.
	FailJob(ctx context.Context, id, errMsg string) (*models.Job, bool, error)
	// DeleteJob removes a job if its status is in the allowed set.
	// Returns false when the job exists but is not deletable.
	DeleteJob(ctx context.Context, id string, allowed []string) (bool, error)
	BulkUpdateJobStatus(ctx context.Context, from []string, to string) (int64, error)
	BulkDeleteJobs(ctx context.Context, statuses []string) (int64, error)
	RaiseJobMaxAttempts(ctx context.Context, id string, maxAttempts int) error

	// Escalation operations
	CreateEscalation(ctx context.Context, e *models.Escalation) error
	GetEscalationByID(ctx context.Context, id string) (*models.Escalation, error)
	ListEscalations(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error)
	MarkChannelComplete(ctx context.Context, id, channel, ref string) error
	MarkChannelFailed(ctx context.Context, id, channel, errMsg string) error

	// Blocklist operations
	UpsertBlocklistEntry(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error)
	ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error)

	// Utility
	Close() error
}
