// Package correlator turns raw WAF events into analyzable tasks.
//
// Events are grouped by (source IP, minute bucket); each new group gets
// a task, event links, and an auto-queued analysis job, written as one
// transaction per group. Re-running over the same data creates nothing:
// the (source_ip, time_bucket) uniqueness constraint is the idempotency
// mechanism, so the generator is safe to trigger from a schedule and a
// manual action at the same time without any distributed lock.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/metrics"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
)

// Store is the event and task persistence the correlator needs.
// repository.Repository satisfies it.
type Store interface {
	ListUnlinkedEventGroups(ctx context.Context) ([]*models.EventGroup, error)
	TaskExists(ctx context.Context, sourceIP, timeBucket string) (bool, error)
	CreateTaskWithJob(ctx context.Context, task *models.Task, job *models.Job) (int, error)
}

// Correlator generates tasks from unlinked open events.
type Correlator struct {
	repo Store
	log  *logging.Logger
}

// New creates a new Correlator.
func New(repo Store, log *logging.Logger) *Correlator {
	return &Correlator{repo: repo, log: log}
}

// GenerateTasks scans open events with no task reference, groups them by
// source IP and minute bucket, and creates one task + job per new group.
//
// Per-group failures are logged and skipped; the run still succeeds with
// partial counts. Only a failure of the grouping query itself (the event
// store being unreachable) propagates as an error.
func (c *Correlator) GenerateTasks(ctx context.Context) (*models.GenerateSummary, error) {
	start := time.Now()
	defer func() {
		metrics.CorrelationDuration.Observe(time.Since(start).Seconds())
	}()

	groups, err := c.repo.ListUnlinkedEventGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list event groups: %w", err)
	}

	summary := &models.GenerateSummary{}
	sourceIPs := map[string]struct{}{}

	for _, group := range groups {
		sourceIPs[group.SourceIP] = struct{}{}

		linked, err := c.processGroup(ctx, group)
		switch {
		case errors.Is(err, repository.ErrTaskExists), errors.Is(err, repository.ErrActiveJobExists):
			// Another run created this group's task between our
			// existence check and the insert. Not an error.
			summary.GroupsSkipped++
			metrics.GroupsSkipped.Inc()
		case err != nil:
			summary.GroupsFailed++
			metrics.GroupsFailed.Inc()
			c.log.Warn("correlation group failed",
				"source_ip", group.SourceIP,
				"time_bucket", group.TimeBucket,
				logging.Err(err))
		case linked == 0:
			// The group's events were claimed or closed since the
			// grouping query ran; nothing to do.
			summary.GroupsSkipped++
			metrics.GroupsSkipped.Inc()
		default:
			summary.TasksCreated++
			summary.JobsCreated++
			summary.EventsLinked += linked
			metrics.TasksGenerated.Inc()
			metrics.EventsLinked.Add(float64(linked))
		}
	}

	summary.SourceIPs = len(sourceIPs)

	c.log.Info("correlation run finished",
		"tasks_created", summary.TasksCreated,
		"events_linked", summary.EventsLinked,
		"groups_skipped", summary.GroupsSkipped,
		"groups_failed", summary.GroupsFailed,
		"source_ips", summary.SourceIPs,
		"duration_ms", time.Since(start).Milliseconds())

	return summary, nil
}

// processGroup creates the task, links, and job for one group. Returns
// the number of events linked; zero with a nil error means the group
// went stale before we got to it.
func (c *Correlator) processGroup(ctx context.Context, group *models.EventGroup) (int, error) {
	exists, err := c.repo.TaskExists(ctx, group.SourceIP, group.TimeBucket)
	if err != nil {
		return 0, fmt.Errorf("failed to check for existing task: %w", err)
	}
	if exists {
		return 0, repository.ErrTaskExists
	}

	taskID, err := uuid.NewV7()
	if err != nil {
		return 0, fmt.Errorf("failed to generate task id: %w", err)
	}
	jobID, err := uuid.NewV7()
	if err != nil {
		return 0, fmt.Errorf("failed to generate job id: %w", err)
	}

	now := time.Now()
	jobStatus := models.JobStatusPending
	task := &models.Task{
		ID:         taskID.String(),
		SourceIP:   group.SourceIP,
		TimeBucket: group.TimeBucket,
		Status:     models.TaskStatusOpen,
		JobStatus:  &jobStatus,
		CreatedAt:  now,
	}
	job := &models.Job{
		ID:          jobID.String(),
		TargetType:  models.JobTargetTask,
		TargetID:    task.ID,
		Status:      models.JobStatusPending,
		Priority:    0,
		Attempts:    0,
		MaxAttempts: 3,
		CreatedAt:   now,
	}

	return c.repo.CreateTaskWithJob(ctx, task, job)
}
