package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

const jobColumns = `
	id, target_type, target_id, status, priority, attempts, max_attempts,
	last_error, created_at, started_at, completed_at, duration_ms`

func scanJob(row pgx.Row) (*models.Job, error) {
	j := &models.Job{}
	err := row.Scan(
		&j.ID, &j.TargetType, &j.TargetID, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.LastError, &j.CreatedAt,
		&j.StartedAt, &j.CompletedAt, &j.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// CreateJob inserts a new analysis job. The partial unique index on
// (target_type, target_id) for non-terminal statuses enforces the
// at-most-one-active-job invariant under concurrent inserts.
func (r *PostgresRepository) CreateJob(ctx context.Context, j *models.Job) error {
	query := `
		INSERT INTO jobs (id, target_type, target_id, status, priority,
			attempts, max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		j.ID, j.TargetType, j.TargetID, j.Status, j.Priority,
		j.Attempts, j.MaxAttempts, j.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveJobExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job by ID
func (r *PostgresRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)

	j, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return j, nil
}

// ListJobs retrieves a paginated list of jobs
func (r *PostgresRepository) ListJobs(ctx context.Context, req *models.ListJobsRequest) ([]*models.Job, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if req.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM jobs %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	args = append(args, req.Limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		%s
		ORDER BY priority DESC, created_at ASC
		LIMIT $%d OFFSET $%d
	`, jobColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, total, nil
}

// HasActiveJob checks whether a target already has a non-terminal job
func (r *PostgresRepository) HasActiveJob(ctx context.Context, targetType, targetID string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM jobs
			WHERE target_type = $1 AND target_id = $2
				AND status NOT IN ('completed', 'failed')
		)
	`
	if err := r.pool.QueryRow(ctx, query, targetType, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active job: %w", err)
	}
	return exists, nil
}

// ClaimNextJob atomically picks the next claimable job (priority DESC,
// FIFO within a tier) and moves it to running. SKIP LOCKED keeps two
// concurrent workers from claiming the same row. Resumed jobs re-enter
// as queued, so both pending and queued are claimable.
func (r *PostgresRepository) ClaimNextJob(ctx context.Context) (*models.Job, error) {
	query := fmt.Sprintf(`
		UPDATE jobs
		SET status = 'running', started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status IN ('pending', 'queued')
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, jobColumns)

	j, err := scanJob(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingJobs
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return j, nil
}

// TransitionJob moves a job from one of the given statuses to the target
// status in one conditional update. Returns false when no row matched,
// which the caller resolves into not-found vs invalid-state.
func (r *PostgresRepository) TransitionJob(ctx context.Context, id string, from []string, to string, clearError bool) (bool, error) {
	query := `UPDATE jobs SET status = $3 WHERE id = $1 AND status = ANY($2)`
	if clearError {
		query = `UPDATE jobs SET status = $3, last_error = NULL WHERE id = $1 AND status = ANY($2)`
	}

	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition job: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CompleteJob moves a running job to completed, stamping completion time
// and processing duration, and writes the analysis result to the job's
// target in the same transaction. If the result cannot be applied the
// completion rolls back and the job stays running, so a retry can
// reprocess it instead of stranding a completed job with no analysis.
func (r *PostgresRepository) CompleteJob(ctx context.Context, id string, upd *AnalysisUpdate) (*models.Job, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE jobs
		SET status = 'completed',
			completed_at = now(),
			duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint
		WHERE id = $1 AND status = 'running'
		RETURNING %s
	`, jobColumns)

	j, err := scanJob(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to complete job: %w", err)
	}

	if upd != nil {
		switch j.TargetType {
		case models.JobTargetTask:
			err = applyTaskAnalysis(ctx, tx, j.TargetID, upd)
		case models.JobTargetEvent:
			err = applyEventAnalysis(ctx, tx, j.TargetID, upd)
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to apply analysis for job %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit job completion: %w", err)
	}

	return j, true, nil
}

// FailJob increments the lifetime attempts counter and returns the job
// to pending, or moves it to failed once attempts reach max_attempts.
func (r *PostgresRepository) FailJob(ctx context.Context, id, errMsg string) (*models.Job, bool, error) {
	query := fmt.Sprintf(`
		UPDATE jobs
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			completed_at = CASE WHEN attempts + 1 >= max_attempts THEN now() ELSE NULL END
		WHERE id = $1 AND status = 'running'
		RETURNING %s
	`, jobColumns)

	j, err := scanJob(r.pool.QueryRow(ctx, query, id, errMsg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to fail job: %w", err)
	}

	return j, true, nil
}

// DeleteJob removes a job if its status is in the allowed set. Returns
// false when no row matched.
func (r *PostgresRepository) DeleteJob(ctx context.Context, id string, allowed []string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM jobs WHERE id = $1 AND status = ANY($2)`, id, allowed)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// BulkUpdateJobStatus transitions every job in one of the from statuses
// to the target status as a single set-based statement.
func (r *PostgresRepository) BulkUpdateJobStatus(ctx context.Context, from []string, to string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $2 WHERE status = ANY($1)`, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk update jobs: %w", err)
	}

	return result.RowsAffected(), nil
}

// BulkDeleteJobs deletes every job whose status is in the given set
func (r *PostgresRepository) BulkDeleteJobs(ctx context.Context, statuses []string) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM jobs WHERE status = ANY($1)`, statuses)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete jobs: %w", err)
	}

	return result.RowsAffected(), nil
}

// RaiseJobMaxAttempts raises the retry cap for a job. GREATEST keeps a
// concurrent lower request from shrinking the cap under the lifetime
// attempts counter.
func (r *PostgresRepository) RaiseJobMaxAttempts(ctx context.Context, id string, maxAttempts int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE jobs SET max_attempts = GREATEST(max_attempts, $2)
		WHERE id = $1
	`, id, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to raise job max attempts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
