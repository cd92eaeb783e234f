package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/repository"
)

// mockRepository implements repository.Repository with overridable funcs.
type mockRepository struct {
	createEventFn             func(ctx context.Context, e *models.Event) error
	getEventByIDFn            func(ctx context.Context, id string) (*models.Event, error)
	listEventsFn              func(ctx context.Context, req *models.ListEventsRequest) ([]*models.Event, int, error)
	listUnlinkedEventGroupsFn func(ctx context.Context) ([]*models.EventGroup, error)
	taskExistsFn              func(ctx context.Context, sourceIP, timeBucket string) (bool, error)
	createTaskWithJobFn       func(ctx context.Context, task *models.Task, job *models.Job) (int, error)
	getTaskByIDFn             func(ctx context.Context, id string) (*models.Task, error)
	listTasksFn               func(ctx context.Context, req *models.ListTasksRequest) ([]*models.Task, int, error)
	getTaskEventsFn           func(ctx context.Context, taskID string) ([]*models.Event, error)
	setTaskJobStatusFn        func(ctx context.Context, taskID, jobStatus string) error
	createJobFn               func(ctx context.Context, j *models.Job) error
	getJobByIDFn              func(ctx context.Context, id string) (*models.Job, error)
	listJobsFn                func(ctx context.Context, req *models.ListJobsRequest) ([]*models.Job, int, error)
	hasActiveJobFn            func(ctx context.Context, targetType, targetID string) (bool, error)
	claimNextJobFn            func(ctx context.Context) (*models.Job, error)
	transitionJobFn           func(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error)
	completeJobFn             func(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, bool, error)
	failJobFn                 func(ctx context.Context, id, errMsg string) (*models.Job, bool, error)
	deleteJobFn               func(ctx context.Context, id string, allowed []string) (bool, error)
	bulkUpdateJobStatusFn     func(ctx context.Context, from []string, to string) (int64, error)
	bulkDeleteJobsFn          func(ctx context.Context, statuses []string) (int64, error)
	raiseJobMaxAttemptsFn     func(ctx context.Context, id string, maxAttempts int) error
	createEscalationFn        func(ctx context.Context, e *models.Escalation) error
	getEscalationByIDFn       func(ctx context.Context, id string) (*models.Escalation, error)
	listEscalationsFn         func(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error)
	markChannelCompleteFn     func(ctx context.Context, id, channel, ref string) error
	markChannelFailedFn       func(ctx context.Context, id, channel, errMsg string) error
	upsertBlocklistEntryFn    func(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error)
	listBlocklistFn           func(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error)
}

func (m *mockRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	return m.createEventFn(ctx, e)
}

func (m *mockRepository) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return m.getEventByIDFn(ctx, id)
}

func (m *mockRepository) ListEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.Event, int, error) {
	return m.listEventsFn(ctx, req)
}

func (m *mockRepository) ListUnlinkedEventGroups(ctx context.Context) ([]*models.EventGroup, error) {
	return m.listUnlinkedEventGroupsFn(ctx)
}

func (m *mockRepository) TaskExists(ctx context.Context, sourceIP, timeBucket string) (bool, error) {
	return m.taskExistsFn(ctx, sourceIP, timeBucket)
}

func (m *mockRepository) CreateTaskWithJob(ctx context.Context, task *models.Task, job *models.Job) (int, error) {
	return m.createTaskWithJobFn(ctx, task, job)
}

func (m *mockRepository) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	return m.getTaskByIDFn(ctx, id)
}

func (m *mockRepository) ListTasks(ctx context.Context, req *models.ListTasksRequest) ([]*models.Task, int, error) {
	return m.listTasksFn(ctx, req)
}

func (m *mockRepository) GetTaskEvents(ctx context.Context, taskID string) ([]*models.Event, error) {
	return m.getTaskEventsFn(ctx, taskID)
}

func (m *mockRepository) SetTaskJobStatus(ctx context.Context, taskID, jobStatus string) error {
	if m.setTaskJobStatusFn == nil {
		return nil
	}
	return m.setTaskJobStatusFn(ctx, taskID, jobStatus)
}

func (m *mockRepository) CreateJob(ctx context.Context, j *models.Job) error {
	return m.createJobFn(ctx, j)
}

func (m *mockRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	return m.getJobByIDFn(ctx, id)
}

func (m *mockRepository) ListJobs(ctx context.Context, req *models.ListJobsRequest) ([]*models.Job, int, error) {
	return m.listJobsFn(ctx, req)
}

func (m *mockRepository) HasActiveJob(ctx context.Context, targetType, targetID string) (bool, error) {
	return m.hasActiveJobFn(ctx, targetType, targetID)
}

func (m *mockRepository) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	return m.claimNextJobFn(ctx)
}

func (m *mockRepository) TransitionJob(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
	return m.transitionJobFn(ctx, id, from, to, clearError)
}

func (m *mockRepository) CompleteJob(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, bool, error) {
	return m.completeJobFn(ctx, id, upd)
}

func (m *mockRepository) FailJob(ctx context.Context, id, errMsg string) (*models.Job, bool, error) {
	return m.failJobFn(ctx, id, errMsg)
}

func (m *mockRepository) DeleteJob(ctx context.Context, id string, allowed []string) (bool, error) {
	return m.deleteJobFn(ctx, id, allowed)
}

func (m *mockRepository) BulkUpdateJobStatus(ctx context.Context, from []string, to string) (int64, error) {
	return m.bulkUpdateJobStatusFn(ctx, from, to)
}

func (m *mockRepository) BulkDeleteJobs(ctx context.Context, statuses []string) (int64, error) {
	return m.bulkDeleteJobsFn(ctx, statuses)
}

func (m *mockRepository) RaiseJobMaxAttempts(ctx context.Context, id string, maxAttempts int) error {
	return m.raiseJobMaxAttemptsFn(ctx, id, maxAttempts)
}

func (m *mockRepository) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	return m.createEscalationFn(ctx, e)
}

func (m *mockRepository) GetEscalationByID(ctx context.Context, id string) (*models.Escalation, error) {
	return m.getEscalationByIDFn(ctx, id)
}

func (m *mockRepository) ListEscalations(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error) {
	return m.listEscalationsFn(ctx, req)
}

func (m *mockRepository) MarkChannelComplete(ctx context.Context, id, channel, ref string) error {
	return m.markChannelCompleteFn(ctx, id, channel, ref)
}

func (m *mockRepository) MarkChannelFailed(ctx context.Context, id, channel, errMsg string) error {
	return m.markChannelFailedFn(ctx, id, channel, errMsg)
}

func (m *mockRepository) UpsertBlocklistEntry(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error) {
	return m.upsertBlocklistEntryFn(ctx, ip, severity, escalationID)
}

func (m *mockRepository) ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error) {
	return m.listBlocklistFn(ctx, activeOnly)
}

func (m *mockRepository) Close() error { return nil }

func testLogger() *logging.Logger {
	return logging.New("error", "text")
}

func TestCreateJob(t *testing.T) {
	t.Run("creates pending job for task target", func(t *testing.T) {
		var created *models.Job
		mock := &mockRepository{
			hasActiveJobFn: func(ctx context.Context, targetType, targetID string) (bool, error) {
				assert.Equal(t, models.JobTargetTask, targetType)
				return false, nil
			},
			createJobFn: func(ctx context.Context, j *models.Job) error {
				created = j
				return nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
			TargetType: models.JobTargetTask,
			TargetID:   "task-1",
			Priority:   5,
		})

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, 5, job.Priority)
		assert.Equal(t, 0, job.Attempts)
		assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
		assert.NotEmpty(t, job.ID)
	})

	t.Run("rejects duplicate active job", func(t *testing.T) {
		mock := &mockRepository{
			hasActiveJobFn: func(ctx context.Context, targetType, targetID string) (bool, error) {
				return true, nil
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
			TargetType: models.JobTargetTask,
			TargetID:   "task-1",
		})

		assert.ErrorIs(t, err, repository.ErrActiveJobExists)
	})

	t.Run("rejects invalid target type", func(t *testing.T) {
		svc := NewService(&mockRepository{}, testLogger())
		_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
			TargetType: "alert",
			TargetID:   "x",
		})

		assert.Error(t, err)
	})

	t.Run("maps race on unique index to active job error", func(t *testing.T) {
		mock := &mockRepository{
			hasActiveJobFn: func(ctx context.Context, targetType, targetID string) (bool, error) {
				return false, nil
			},
			createJobFn: func(ctx context.Context, j *models.Job) error {
				return repository.ErrActiveJobExists
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.CreateJob(context.Background(), &models.CreateJobRequest{
			TargetType: models.JobTargetEvent,
			TargetID:   "event-1",
		})

		assert.ErrorIs(t, err, repository.ErrActiveJobExists)
	})
}

func TestRetryJob(t *testing.T) {
	t.Run("retries failed job without resetting attempts", func(t *testing.T) {
		var gotFrom []string
		var gotClear bool
		mock := &mockRepository{
			transitionJobFn: func(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
				gotFrom = from
				gotClear = clearError
				assert.Equal(t, models.JobStatusPending, to)
				return true, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return &models.Job{ID: id, Status: models.JobStatusPending, Attempts: 3}, nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.RetryJob(context.Background(), "job-1")

		require.NoError(t, err)
		assert.Equal(t, []string{models.JobStatusFailed}, gotFrom)
		assert.True(t, gotClear)
		assert.Equal(t, 3, job.Attempts, "retry must not reset the lifetime counter")
	})

	t.Run("returns invalid state for non-failed job", func(t *testing.T) {
		mock := &mockRepository{
			transitionJobFn: func(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
				return false, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return &models.Job{ID: id, Status: models.JobStatusRunning}, nil
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.RetryJob(context.Background(), "job-1")

		var stateErr *InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, models.JobStatusRunning, stateErr.Status)
		assert.Equal(t, "retry", stateErr.Action)
	})

	t.Run("returns not found for missing job", func(t *testing.T) {
		mock := &mockRepository{
			transitionJobFn: func(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
				return false, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return nil, repository.ErrJobNotFound
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.RetryJob(context.Background(), "missing")

		assert.ErrorIs(t, err, repository.ErrJobNotFound)
	})
}

func TestCancelJob(t *testing.T) {
	t.Run("cancels job that has not started", func(t *testing.T) {
		var gotAllowed []string
		mock := &mockRepository{
			deleteJobFn: func(ctx context.Context, id string, allowed []string) (bool, error) {
				gotAllowed = allowed
				return true, nil
			},
		}

		svc := NewService(mock, testLogger())
		err := svc.CancelJob(context.Background(), "job-1")

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			models.JobStatusPending, models.JobStatusQueued, models.JobStatusOnHold,
		}, gotAllowed)
	})

	t.Run("rejects cancelling a running job", func(t *testing.T) {
		mock := &mockRepository{
			deleteJobFn: func(ctx context.Context, id string, allowed []string) (bool, error) {
				return false, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return &models.Job{ID: id, Status: models.JobStatusRunning}, nil
			},
		}

		svc := NewService(mock, testLogger())
		err := svc.CancelJob(context.Background(), "job-1")

		var stateErr *InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, models.JobStatusRunning, stateErr.Status)
	})
}

func TestPauseResume(t *testing.T) {
	t.Run("pause moves pending and queued to on_hold", func(t *testing.T) {
		mock := &mockRepository{
			bulkUpdateJobStatusFn: func(ctx context.Context, from []string, to string) (int64, error) {
				assert.ElementsMatch(t, []string{models.JobStatusPending, models.JobStatusQueued}, from)
				assert.Equal(t, models.JobStatusOnHold, to)
				return 4, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.PauseAll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("resume moves on_hold to queued", func(t *testing.T) {
		mock := &mockRepository{
			bulkUpdateJobStatusFn: func(ctx context.Context, from []string, to string) (int64, error) {
				assert.Equal(t, []string{models.JobStatusOnHold}, from)
				assert.Equal(t, models.JobStatusQueued, to)
				return 4, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.ResumeAll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("pause with empty queue is a no-op success", func(t *testing.T) {
		mock := &mockRepository{
			bulkUpdateJobStatusFn: func(ctx context.Context, from []string, to string) (int64, error) {
				return 0, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.PauseAll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

func TestClear(t *testing.T) {
	t.Run("clear all never touches running jobs", func(t *testing.T) {
		mock := &mockRepository{
			bulkDeleteJobsFn: func(ctx context.Context, statuses []string) (int64, error) {
				assert.NotContains(t, statuses, models.JobStatusRunning)
				assert.ElementsMatch(t, []string{
					models.JobStatusPending, models.JobStatusQueued,
					models.JobStatusCompleted, models.JobStatusFailed,
					models.JobStatusOnHold,
				}, statuses)
				return 7, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.ClearAll(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("clear completed only targets completed", func(t *testing.T) {
		mock := &mockRepository{
			bulkDeleteJobsFn: func(ctx context.Context, statuses []string) (int64, error) {
				assert.Equal(t, []string{models.JobStatusCompleted}, statuses)
				return 2, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.ClearCompleted(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("clear failed only targets failed", func(t *testing.T) {
		mock := &mockRepository{
			bulkDeleteJobsFn: func(ctx context.Context, statuses []string) (int64, error) {
				assert.Equal(t, []string{models.JobStatusFailed}, statuses)
				return 1, nil
			},
		}

		svc := NewService(mock, testLogger())
		n, err := svc.ClearFailed(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestComplete(t *testing.T) {
	t.Run("hands the analysis to the completion transaction", func(t *testing.T) {
		durationMs := int64(1500)
		var gotUpd *repository.AnalysisUpdate
		var mirrored []string
		mock := &mockRepository{
			completeJobFn: func(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, bool, error) {
				gotUpd = upd
				return &models.Job{
					ID:         id,
					TargetType: models.JobTargetTask,
					TargetID:   "task-1",
					Status:     models.JobStatusCompleted,
					DurationMs: &durationMs,
				}, true, nil
			},
			setTaskJobStatusFn: func(ctx context.Context, taskID, jobStatus string) error {
				mirrored = append(mirrored, jobStatus)
				return nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.Complete(context.Background(), "job-1", &repository.AnalysisUpdate{
			Result:      &models.AnalysisResult{SeverityRating: 4, AttackType: "SQL Injection"},
			TaskStatus:  models.TaskStatusInReview,
			EventStatus: models.EventStatusOpen,
		})

		require.NoError(t, err)
		require.NotNil(t, gotUpd)
		assert.Equal(t, 4, gotUpd.Result.SeverityRating)
		assert.Equal(t, models.TaskStatusInReview, gotUpd.TaskStatus)
		assert.Equal(t, models.JobStatusCompleted, job.Status)
		assert.Contains(t, mirrored, models.JobStatusCompleted)
	})

	t.Run("a failed analysis write leaves the job untouched", func(t *testing.T) {
		var mirrored []string
		mock := &mockRepository{
			completeJobFn: func(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, bool, error) {
				// the repository rolls the completion back with the
				// analysis, so nothing comes back
				return nil, false, errors.New("failed to apply analysis for job job-1: connection reset by peer")
			},
			setTaskJobStatusFn: func(ctx context.Context, taskID, jobStatus string) error {
				mirrored = append(mirrored, jobStatus)
				return nil
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.Complete(context.Background(), "job-1", &repository.AnalysisUpdate{
			Result: &models.AnalysisResult{SeverityRating: 3},
		})

		require.Error(t, err)
		assert.Empty(t, mirrored, "a rolled-back completion must not be mirrored onto the task")
	})

	t.Run("rejects completing a non-running job", func(t *testing.T) {
		mock := &mockRepository{
			completeJobFn: func(ctx context.Context, id string, upd *repository.AnalysisUpdate) (*models.Job, bool, error) {
				return nil, false, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return &models.Job{ID: id, Status: models.JobStatusPending}, nil
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.Complete(context.Background(), "job-1", &repository.AnalysisUpdate{})

		var stateErr *InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, "complete", stateErr.Action)
	})
}

func TestFail(t *testing.T) {
	t.Run("requeues while attempts remain", func(t *testing.T) {
		mock := &mockRepository{
			failJobFn: func(ctx context.Context, id, errMsg string) (*models.Job, bool, error) {
				msg := errMsg
				return &models.Job{
					ID:          id,
					TargetType:  models.JobTargetTask,
					TargetID:    "task-1",
					Status:      models.JobStatusPending,
					Attempts:    1,
					MaxAttempts: 3,
					LastError:   &msg,
				}, true, nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.Fail(context.Background(), "job-1", "analysis timeout")

		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, 1, job.Attempts)
	})

	t.Run("marks failed at the attempt cap", func(t *testing.T) {
		mock := &mockRepository{
			failJobFn: func(ctx context.Context, id, errMsg string) (*models.Job, bool, error) {
				msg := errMsg
				return &models.Job{
					ID:          id,
					TargetType:  models.JobTargetTask,
					TargetID:    "task-1",
					Status:      models.JobStatusFailed,
					Attempts:    3,
					MaxAttempts: 3,
					LastError:   &msg,
				}, true, nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.Fail(context.Background(), "job-1", "analysis timeout")

		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, job.Status)
		assert.Equal(t, 3, job.Attempts)
	})

	t.Run("rejects failing a non-running job", func(t *testing.T) {
		mock := &mockRepository{
			failJobFn: func(ctx context.Context, id, errMsg string) (*models.Job, bool, error) {
				return nil, false, nil
			},
			getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
				return &models.Job{ID: id, Status: models.JobStatusCompleted}, nil
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.Fail(context.Background(), "job-1", "late error")

		var stateErr *InvalidStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, models.JobStatusCompleted, stateErr.Status)
	})
}

func TestClaim(t *testing.T) {
	t.Run("returns claimed job and mirrors running onto task", func(t *testing.T) {
		started := time.Now()
		var mirroredStatus string
		mock := &mockRepository{
			claimNextJobFn: func(ctx context.Context) (*models.Job, error) {
				return &models.Job{
					ID:         "job-1",
					TargetType: models.JobTargetTask,
					TargetID:   "task-1",
					Status:     models.JobStatusRunning,
					StartedAt:  &started,
				}, nil
			},
			setTaskJobStatusFn: func(ctx context.Context, taskID, jobStatus string) error {
				mirroredStatus = jobStatus
				return nil
			},
		}

		svc := NewService(mock, testLogger())
		job, err := svc.Claim(context.Background())

		require.NoError(t, err)
		assert.Equal(t, models.JobStatusRunning, job.Status)
		assert.Equal(t, models.JobStatusRunning, mirroredStatus)
	})

	t.Run("propagates empty queue", func(t *testing.T) {
		mock := &mockRepository{
			claimNextJobFn: func(ctx context.Context) (*models.Job, error) {
				return nil, repository.ErrNoPendingJobs
			},
		}

		svc := NewService(mock, testLogger())
		_, err := svc.Claim(context.Background())

		assert.ErrorIs(t, err, repository.ErrNoPendingJobs)
	})
}

func TestResetStuck(t *testing.T) {
	mock := &mockRepository{
		transitionJobFn: func(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
			assert.Equal(t, []string{models.JobStatusRunning}, from)
			assert.Equal(t, models.JobStatusPending, to)
			assert.False(t, clearError)
			return true, nil
		},
		getJobByIDFn: func(ctx context.Context, id string) (*models.Job, error) {
			return &models.Job{ID: id, Status: models.JobStatusPending}, nil
		},
	}

	svc := NewService(mock, testLogger())
	job, err := svc.ResetStuck(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestRaiseMaxAttempts(t *testing.T) {
	t.Run("raises the cap", func(t *testing.T) {
		var gotMax int
		mock := &mockRepository{
			raiseJobMaxAttemptsFn: func(ctx context.Context, id string, maxAttempts int) error {
				gotMax = maxAttempts
				return nil
			},
		}

		svc := NewService(mock, testLogger())
		err := svc.RaiseMaxAttempts(context.Background(), "job-1", 5)

		require.NoError(t, err)
		assert.Equal(t, 5, gotMax)
	})

	t.Run("rejects non-positive cap", func(t *testing.T) {
		svc := NewService(&mockRepository{}, testLogger())
		err := svc.RaiseMaxAttempts(context.Background(), "job-1", 0)

		assert.Error(t, err)
	})
}

func TestMirrorFailureDoesNotFailOperation(t *testing.T) {
	mock := &mockRepository{
		claimNextJobFn: func(ctx context.Context) (*models.Job, error) {
			return &models.Job{
				ID:         "job-1",
				TargetType: models.JobTargetTask,
				TargetID:   "task-1",
				Status:     models.JobStatusRunning,
			}, nil
		},
		setTaskJobStatusFn: func(ctx context.Context, taskID, jobStatus string) error {
			return errors.New("task row gone")
		},
	}

	svc := NewService(mock, testLogger())
	job, err := svc.Claim(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, job)
}
