// Package worker runs the analysis loop: claim a job, analyze its
// target, triage the result, and escalate high-severity findings.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/analysis"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
)

// campaignEventThreshold is the event count at which a single task is
// treated as an attack campaign rather than an isolated finding.
const campaignEventThreshold = 10

// JobQueue is the job lifecycle surface the worker drives.
type JobQueue interface {
	Claim(ctx context.Context) (*models.Job, error)
	Complete(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, error)
	Fail(ctx context.Context, id, errMsg string) (*models.Job, error)
}

// Store is the read access the worker needs to load job targets.
type Store interface {
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetTaskEvents(ctx context.Context, taskID string) ([]*models.Event, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
}

// Escalator records high-severity findings.
type Escalator interface {
	Create(ctx context.Context, req *models.CreateEscalationRequest) (*models.Escalation, error)
}

// Worker polls the job queue and runs analysis jobs.
type Worker struct {
	jobs      JobQueue
	store     Store
	analyzer  analysis.Client
	escalator Escalator
	name      string
	interval  time.Duration
	log       *logging.Logger
	stop      chan struct{}
	stopped   chan struct{}
}

// New creates a worker. name is recorded as analyzed_by on everything
// this worker rates.
func New(jobs JobQueue, store Store, analyzer analysis.Client, escalator Escalator, name string, interval time.Duration, log *logging.Logger) *Worker {
	return &Worker{
		jobs:      jobs,
		store:     store,
		analyzer:  analyzer,
		escalator: escalator,
		name:      name,
		interval:  interval,
		log:       log,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins the poll loop. This should be called in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.stopped)

	w.log.Info("analysis worker started", "name", w.name, "poll_interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)

	for {
		select {
		case <-ticker.C:
			w.drain(ctx)
		case <-w.stop:
			w.log.Info("analysis worker stopped")
			return
		case <-ctx.Done():
			w.log.Info("analysis worker context cancelled")
			return
		}
	}
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.stopped
}

// drain processes jobs until the queue is empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobs.Claim(ctx)
		if err != nil {
			if !errors.Is(err, repository.ErrNoPendingJobs) {
				w.log.Error("failed to claim job", logging.Err(err))
			}
			return
		}

		w.Process(ctx, job)
	}
}

// Process runs one claimed job to completion or failure.
func (w *Worker) Process(ctx context.Context, job *models.Job) {
	var err error
	switch job.TargetType {
	case models.JobTargetTask:
		err = w.processTask(ctx, job)
	case models.JobTargetEvent:
		err = w.processEvent(ctx, job)
	default:
		err = fmt.Errorf("unknown target type: %s", job.TargetType)
	}

	if err != nil {
		w.log.Warn("job processing failed",
			"job_id", job.ID,
			"target_type", job.TargetType,
			"target_id", job.TargetID,
			logging.Err(err))
		if _, failErr := w.jobs.Fail(ctx, job.ID, err.Error()); failErr != nil {
			w.log.Error("failed to record job failure",
				"job_id", job.ID, logging.Err(failErr))
		}
	}
}

func (w *Worker) processTask(ctx context.Context, job *models.Job) error {
	task, err := w.store.GetTaskByID(ctx, job.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	events, err := w.store.GetTaskEvents(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to load task events: %w", err)
	}

	result, err := w.analyzer.AnalyzeTask(ctx, task, events)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	decision := Triage(result.SeverityRating)
	upd := &repository.AnalysisUpdate{
		Result:      result,
		TaskStatus:  decision.TaskStatus,
		EventStatus: decision.EventStatus,
		AnalyzedBy:  w.name,
	}

	if _, err := w.jobs.Complete(ctx, job.ID, upd); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if decision.Escalate {
		w.escalateTask(ctx, task, events, result)
	}

	return nil
}

func (w *Worker) processEvent(ctx context.Context, job *models.Job) error {
	event, err := w.store.GetEventByID(ctx, job.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	result, err := w.analyzer.AnalyzeEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	decision := Triage(result.SeverityRating)
	upd := &repository.AnalysisUpdate{
		Result:      result,
		EventStatus: decision.EventStatus,
		AnalyzedBy:  w.name,
	}

	if _, err := w.jobs.Complete(ctx, job.ID, upd); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if decision.Escalate {
		w.escalateEvent(ctx, event, result)
	}

	return nil
}

// escalateTask records a high-severity task finding. A task large enough
// to cross campaignEventThreshold is classified as an attack campaign.
// Escalation failures are logged, not propagated: the analysis itself
// succeeded and the escalation can be re-raised by an operator.
func (w *Worker) escalateTask(ctx context.Context, task *models.Task, events []*models.Event, result *models.AnalysisResult) {
	sourceType := models.SourceTypeSmartTask
	if len(events) >= campaignEventThreshold {
		sourceType = models.SourceTypeAttackCampaign
	}

	eventIDs := make([]string, 0, len(events))
	for _, e := range events {
		eventIDs = append(eventIDs, e.ID)
	}

	req := &models.CreateEscalationRequest{
		Title: fmt.Sprintf("%s from %s (severity %d)",
			result.AttackType, task.SourceIP, result.SeverityRating),
		Message:    result.SecurityAnalysis,
		Severity:   result.SeverityRating,
		SourceType: sourceType,
		SourceID:   task.ID,
		SourceIP:   task.SourceIP,
		Detail: map[string]any{
			"attack_type":         result.AttackType,
			"rating_reason":       result.RatingReason,
			"recommended_actions": result.RecommendedActions,
			"time_bucket":         task.TimeBucket,
			"event_count":         len(events),
			"affected_event_ids":  eventIDs,
		},
	}

	if _, err := w.escalator.Create(ctx, req); err != nil {
		w.log.Error("failed to escalate task finding",
			"task_id", task.ID, logging.Err(err))
	}
}

func (w *Worker) escalateEvent(ctx context.Context, event *models.Event, result *models.AnalysisResult) {
	req := &models.CreateEscalationRequest{
		Title: fmt.Sprintf("%s from %s (severity %d)",
			result.AttackType, event.SourceIP, result.SeverityRating),
		Message:    result.SecurityAnalysis,
		Severity:   result.SeverityRating,
		SourceType: models.SourceTypeWAFEvent,
		SourceID:   event.ID,
		SourceIP:   event.SourceIP,
		Detail: map[string]any{
			"attack_type":         result.AttackType,
			"rating_reason":       result.RatingReason,
			"recommended_actions": result.RecommendedActions,
			"rule_name":           event.RuleName,
			"uri":                 event.URI,
		},
	}

	if _, err := w.escalator.Create(ctx, req); err != nil {
		w.log.Error("failed to escalate event finding",
			"event_id", event.ID, logging.Err(err))
	}
}
