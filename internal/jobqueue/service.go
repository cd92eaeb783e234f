// Package jobqueue owns the analysis job lifecycle.
//
// State machine:
//
//	pending --(claimed)--> running --(success)--> completed
//	pending/queued --(pause)--> on_hold --(resume)--> queued
//	running --(error, attempts < max)--> pending
//	running --(error, attempts >= max)--> failed
//	pending/queued/on_hold --(cancel)--> removed
//
// completed is terminal; failed is terminal until an operator retries or
// raises the attempt cap. attempts is a lifetime counter: a manual retry
// never resets it.
package jobqueue

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

// DefaultMaxAttempts is the retry cap applied to new jobs.
const DefaultMaxAttempts = 3

// Service manages analysis jobs.
type Service struct {
	repo repository.Repository
	log  *logging.Logger
}

// NewService creates a new job queue service.
func NewService(repo repository.Repository, log *logging.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateJob queues a new analysis job for a task or event. A target may
// only have one non-terminal job at a time.
func (s *Service) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error) {
	if req.TargetType != models.JobTargetTask && req.TargetType != models.JobTargetEvent {
		return nil, models.Invalidf("invalid target type: %s", req.TargetType)
	}
	if req.TargetID == "" {
		return nil, models.Invalidf("target id is required")
	}

	active, err := s.repo.HasActiveJob(ctx, req.TargetType, req.TargetID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, repository.ErrActiveJobExists
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job id: %w", err)
	}

	job := &models.Job{
		ID:          jobID.String(),
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Status:      models.JobStatusPending,
		Priority:    req.Priority,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.mirrorTaskStatus(ctx, job, models.JobStatusPending)
	metrics.JobTransitions.WithLabelValues("created").Inc()

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

// ListJobs retrieves a paginated list of jobs.
func (s *Service) ListJobs(ctx context.Context, req *models.ListJobsRequest) (*models.ListJobsResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 50
	}

	jobs, total, err := s.repo.ListJobs(ctx, req)
	if err != nil {
		return nil, err
	}

	totalPages := (total + req.Limit - 1) / req.Limit

	return &models.ListJobsResponse{
		Jobs: jobs,
		Pagination: models.Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// RetryJob returns a failed job to pending. The error is cleared but the
// lifetime attempts counter is not: a job at its cap will fail again
// immediately unless RaiseMaxAttempts is used first.
func (s *Service) RetryJob(ctx context.Context, id string) (*models.Job, error) {
	ok, err := s.repo.TransitionJob(ctx, id,
		[]string{models.JobStatusFailed}, models.JobStatusPending, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateError(ctx, id, "retry")
	}

	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mirrorTaskStatus(ctx, job, models.JobStatusPending)
	metrics.JobTransitions.WithLabelValues("retried").Inc()
	s.log.Info("job retried", "job_id", id, "attempts", job.Attempts)

	return job, nil
}

// CancelJob removes a job that has not started. A running job cannot be
// cancelled without worker cooperation, and a terminal job should be
// cleared instead.
func (s *Service) CancelJob(ctx context.Context, id string) error {
	allowed := []string{models.JobStatusPending, models.JobStatusQueued, models.JobStatusOnHold}

	ok, err := s.repo.DeleteJob(ctx, id, allowed)
	if err != nil {
		return err
	}
	if !ok {
		return s.stateError(ctx, id, "cancel")
	}

	metrics.JobTransitions.WithLabelValues("cancelled").Inc()
	s.log.Info("job cancelled", "job_id", id)

	return nil
}

// PauseAll moves every pending and queued job to on_hold in one
// statement. Used to halt intake during maintenance windows; the paused
// state is just the rows, so it survives restarts.
func (s *Service) PauseAll(ctx context.Context) (int64, error) {
	n, err := s.repo.BulkUpdateJobStatus(ctx,
		[]string{models.JobStatusPending, models.JobStatusQueued}, models.JobStatusOnHold)
	if err != nil {
		return 0, err
	}

	metrics.JobTransitions.WithLabelValues("paused").Inc()
	s.log.Info("job intake paused", "affected", n)

	return n, nil
}

// ResumeAll returns every on_hold job to the claimable queue.
func (s *Service) ResumeAll(ctx context.Context) (int64, error) {
	n, err := s.repo.BulkUpdateJobStatus(ctx,
		[]string{models.JobStatusOnHold}, models.JobStatusQueued)
	if err != nil {
		return 0, err
	}

	metrics.JobTransitions.WithLabelValues("resumed").Inc()
	s.log.Info("job intake resumed", "affected", n)

	return n, nil
}

// ClearCompleted deletes all completed jobs.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	return s.repo.BulkDeleteJobs(ctx, []string{models.JobStatusCompleted})
}

// ClearFailed deletes all failed jobs.
func (s *Service) ClearFailed(ctx context.Context) (int64, error) {
	return s.repo.BulkDeleteJobs(ctx, []string{models.JobStatusFailed})
}

// ClearAll deletes all jobs except running ones; in-flight work is never
// deleted out from under a worker.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	return s.repo.BulkDeleteJobs(ctx, []string{
		models.JobStatusPending, models.JobStatusQueued,
		models.JobStatusCompleted, models.JobStatusFailed,
		models.JobStatusOnHold,
	})
}

// Claim hands the next claimable job to a worker, marking it running.
// Returns repository.ErrNoPendingJobs when the queue is empty or paused.
func (s *Service) Claim(ctx context.Context) (*models.Job, error) {
	job, err := s.repo.ClaimNextJob(ctx)
	if err != nil {
		return nil, err
	}

	s.mirrorTaskStatus(ctx, job, models.JobStatusRunning)
	metrics.JobTransitions.WithLabelValues("claimed").Inc()

	return job, nil
}

// Complete records a successful analysis run: the job moves to
// completed, and the result plus triage statuses are applied to the
// job's target (and, for tasks, all linked events) in one transaction.
func (s *Service) Complete(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, error) {
	job, ok, err := s.repo.CompleteJob(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateError(ctx, id, "complete")
	}

	s.mirrorTaskStatus(ctx, job, models.JobStatusCompleted)
	metrics.JobTransitions.WithLabelValues("completed").Inc()
	if job.DurationMs != nil {
		metrics.JobProcessingDuration.Observe(float64(*job.DurationMs) / 1000)
	}
	s.log.Info("job completed", "job_id", id,
		"target_type", job.TargetType, "target_id", job.TargetID)

	return job, nil
}

// Fail records a failed analysis run. The lifetime attempts counter is
// incremented; the job returns to pending while attempts remain, and
// moves to failed once the cap is reached. Failing a job that is not
// running is an invalid transition, not a silent coercion.
func (s *Service) Fail(ctx context.Context, id, errMsg string) (*models.Job, error) {
	job, ok, err := s.repo.FailJob(ctx, id, errMsg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateError(ctx, id, "fail")
	}

	s.mirrorTaskStatus(ctx, job, job.Status)
	if job.Status == models.JobStatusFailed {
		metrics.JobTransitions.WithLabelValues("exhausted").Inc()
		s.log.Warn("job exhausted retries", "job_id", id,
			"attempts", job.Attempts, "error", errMsg)
	} else {
		metrics.JobTransitions.WithLabelValues("requeued").Inc()
		s.log.Info("job requeued after failure", "job_id", id,
			"attempts", job.Attempts, "error", errMsg)
	}

	return job, nil
}

// ResetStuck forces a running job back to pending. There is no
// automatic staleness detection: this is the explicit operator remedy
// for a worker that died mid-job.
func (s *Service) ResetStuck(ctx context.Context, id string) (*models.Job, error) {
	ok, err := s.repo.TransitionJob(ctx, id,
		[]string{models.JobStatusRunning}, models.JobStatusPending, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.stateError(ctx, id, "reset")
	}

	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mirrorTaskStatus(ctx, job, models.JobStatusPending)
	metrics.JobTransitions.WithLabelValues("reset").Inc()
	s.log.Warn("stuck job reset", "job_id", id)

	return job, nil
}

// RaiseMaxAttempts raises a job's retry cap so an operator can retry a
// job whose lifetime attempts already reached the default cap.
func (s *Service) RaiseMaxAttempts(ctx context.Context, id string, maxAttempts int) error {
	if maxAttempts < 1 {
		return models.Invalidf("max attempts must be positive")
	}
	return s.repo.RaiseJobMaxAttempts(ctx, id, maxAttempts)
}

// stateError resolves a zero-row conditional update into not-found vs
// invalid-state.
func (s *Service) stateError(ctx context.Context, id, action string) error {
	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return repository.ErrJobNotFound
		}
		return err
	}
	return &InvalidStateError{JobID: id, Status: job.Status, Action: action}
}

// mirrorTaskStatus copies a job status onto its owning task so a task
// row alone shows the analysis pipeline state. Best effort: a mirror
// failure never fails the job operation itself.
func (s *Service) mirrorTaskStatus(ctx context.Context, job *models.Job, status string) {
	if job.TargetType != models.JobTargetTask {
		return
	}
	if err := s.repo.SetTaskJobStatus(ctx, job.TargetID, status); err != nil {
		s.log.Warn("failed to mirror job status to task",
			"job_id", job.ID, "task_id", job.TargetID, logging.Err(err))
	}
}
