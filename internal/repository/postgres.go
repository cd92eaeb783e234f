package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

// uniqueViolation is the Postgres error code raised when a unique
// constraint rejects an insert.
const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// execer is the statement surface shared by pgxpool.Pool and pgx.Tx, so
// helpers can run inside or outside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const eventColumns = `
	id, source_ip, country, uri, http_method, rule_name, user_agent,
	action, event_time, status, severity, analysis, recommendations,
	analyzed_at, analyzed_by, task_id, created_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	e := &models.Event{}
	err := row.Scan(
		&e.ID, &e.SourceIP, &e.Country, &e.URI, &e.HTTPMethod, &e.RuleName,
		&e.UserAgent, &e.Action, &e.EventTime, &e.Status, &e.Severity,
		&e.Analysis, &e.Recommendations, &e.AnalyzedAt, &e.AnalyzedBy,
		&e.TaskID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEvent inserts a raw WAF event
func (r *PostgresRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (id, source_ip, country, uri, http_method, rule_name,
			user_agent, action, event_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.SourceIP, e.Country, e.URI, e.HTTPMethod, e.RuleName,
		e.UserAgent, e.Action, e.EventTime, e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// GetEventByID retrieves an event by ID
func (r *PostgresRepository) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events WHERE id = $1`, eventColumns)

	e, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return e, nil
}

// ListEvents retrieves a paginated list of events
func (r *PostgresRepository) ListEvents(ctx context.Context, req *models.ListEventsRequest) ([]*models.Event, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if req.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.SourceIP != "" {
		whereClause += fmt.Sprintf(" AND source_ip = $%d", argPos)
		args = append(args, req.SourceIP)
		argPos++
	}
	if req.Unlinked {
		whereClause += " AND task_id IS NULL"
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	args = append(args, req.Limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM events
		%s
		ORDER BY event_time DESC
		LIMIT $%d OFFSET $%d
	`, eventColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return events, total, nil
}

// ListUnlinkedEventGroups aggregates open, unlinked events into
// (source_ip, minute bucket) groups for correlation.
func (r *PostgresRepository) ListUnlinkedEventGroups(ctx context.Context) ([]*models.EventGroup, error) {
	query := `
		SELECT
			source_ip,
			to_char(date_trunc('minute', event_time AT TIME ZONE 'UTC'), 'YYYYMMDD-HH24MI') AS time_bucket,
			COUNT(*) AS event_count,
			MIN(event_time) AS first_seen,
			MAX(event_time) AS last_seen
		FROM events
		WHERE status = 'open' AND task_id IS NULL
		GROUP BY source_ip, time_bucket
		ORDER BY time_bucket ASC, source_ip ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to group unlinked events: %w", err)
	}
	defer rows.Close()

	groups := []*models.EventGroup{}
	for rows.Next() {
		g := &models.EventGroup{}
		if err := rows.Scan(&g.SourceIP, &g.TimeBucket, &g.EventCount, &g.FirstSeen, &g.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan event group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return groups, nil
}

// TaskExists checks the idempotency guard for a (source, bucket) pair
func (r *PostgresRepository) TaskExists(ctx context.Context, sourceIP, timeBucket string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tasks WHERE source_ip = $1 AND time_bucket = $2)`
	if err := r.pool.QueryRow(ctx, query, sourceIP, timeBucket).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return exists, nil
}

// CreateTaskWithJob performs the correlation writes for one group as a
// single transaction: re-fetch the bucket's events, insert the task,
// link the events, mark them, and queue the analysis job. Returns the
// number of events linked; zero means the group was stale (its events
// were claimed by another run) and nothing was written.
func (r *PostgresRepository) CreateTaskWithJob(ctx context.Context, task *models.Task, job *models.Job) (int, error) {
	start, end, err := models.BucketBounds(task.TimeBucket)
	if err != nil {
		return 0, fmt.Errorf("invalid time bucket %q: %w", task.TimeBucket, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Re-fetch the exact event set rather than trusting the grouping
	// aggregate: events may have been linked or closed since the
	// grouping query ran.
	rows, err := tx.Query(ctx, `
		SELECT id FROM events
		WHERE status = 'open' AND task_id IS NULL
			AND source_ip = $1 AND event_time >= $2 AND event_time < $3
		FOR UPDATE
	`, task.SourceIP, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch bucket events: %w", err)
	}

	eventIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan event id: %w", err)
		}
		eventIDs = append(eventIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	if len(eventIDs) == 0 {
		return 0, nil
	}

	task.EventCount = len(eventIDs)
	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (id, source_ip, time_bucket, status, event_count, job_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, task.ID, task.SourceIP, task.TimeBucket, task.Status, task.EventCount, task.JobStatus, task.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrTaskExists
		}
		return 0, fmt.Errorf("failed to create task: %w", err)
	}

	for _, eventID := range eventIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO task_events (task_id, event_id, created_at)
			VALUES ($1, $2, $3)
		`, task.ID, eventID, task.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to link event %s: %w", eventID, err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE events SET task_id = $1 WHERE id = ANY($2)`, task.ID, eventIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark linked events: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, target_type, target_id, status, priority, attempts, max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, job.ID, job.TargetType, job.TargetID, job.Status, job.Priority, job.Attempts, job.MaxAttempts, job.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrActiveJobExists
		}
		return 0, fmt.Errorf("failed to create job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit correlation transaction: %w", err)
	}

	return len(eventIDs), nil
}

const taskColumns = `
	id, source_ip, time_bucket, status, event_count, severity, attack_type,
	analysis, recommendations, job_status, created_at, updated_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.SourceIP, &t.TimeBucket, &t.Status, &t.EventCount,
		&t.Severity, &t.AttackType, &t.Analysis, &t.Recommendations,
		&t.JobStatus, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TimeBucket = strings.TrimSpace(t.TimeBucket)
	return t, nil
}

// GetTaskByID retrieves a task by ID
func (r *PostgresRepository) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	t, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// ListTasks retrieves a paginated list of tasks
func (r *PostgresRepository) ListTasks(ctx context.Context, req *models.ListTasksRequest) ([]*models.Task, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if req.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.SourceIP != "" {
		whereClause += fmt.Sprintf(" AND source_ip = $%d", argPos)
		args = append(args, req.SourceIP)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tasks %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	args = append(args, req.Limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, taskColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return tasks, total, nil
}

// GetTaskEvents retrieves all events linked to a task
func (r *PostgresRepository) GetTaskEvents(ctx context.Context, taskID string) ([]*models.Event, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM events
		WHERE task_id = $1
		ORDER BY event_time ASC
	`, eventColumns)

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// SetTaskJobStatus updates the task's mirror of its analysis job status
func (r *PostgresRepository) SetTaskJobStatus(ctx context.Context, taskID, jobStatus string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks SET job_status = $2, updated_at = now() WHERE id = $1
	`, taskID, jobStatus)
	if err != nil {
		return fmt.Errorf("failed to set task job status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// applyTaskAnalysis writes an analysis result to a task and bulk-updates
// all linked events. Runs on the caller's transaction so it commits or
// rolls back with the job completion.
func applyTaskAnalysis(ctx context.Context, q execer, taskID string, upd *AnalysisUpdate) error {
	result, err := q.Exec(ctx, `
		UPDATE tasks
		SET severity = $2, attack_type = $3, analysis = $4,
			recommendations = $5, status = $6, updated_at = now()
		WHERE id = $1
	`, taskID, upd.Result.SeverityRating, upd.Result.AttackType,
		upd.Result.SecurityAnalysis, upd.Result.RecommendedActions, upd.TaskStatus)
	if err != nil {
		return fmt.Errorf("failed to update task analysis: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	_, err = q.Exec(ctx, `
		UPDATE events
		SET severity = $2, analysis = $3, recommendations = $4,
			status = $5, analyzed_at = now(), analyzed_by = $6
		WHERE task_id = $1
	`, taskID, upd.Result.SeverityRating, upd.Result.SecurityAnalysis,
		upd.Result.RecommendedActions, upd.EventStatus, upd.AnalyzedBy)
	if err != nil {
		return fmt.Errorf("failed to update linked events: %w", err)
	}

	return nil
}

// applyEventAnalysis writes an analysis result to a single event
func applyEventAnalysis(ctx context.Context, q execer, eventID string, upd *AnalysisUpdate) error {
	result, err := q.Exec(ctx, `
		UPDATE events
		SET severity = $2, analysis = $3, recommendations = $4,
			status = $5, analyzed_at = now(), analyzed_by = $6
		WHERE id = $1
	`, eventID, upd.Result.SeverityRating, upd.Result.SecurityAnalysis,
		upd.Result.RecommendedActions, upd.EventStatus, upd.AnalyzedBy)
	if err != nil {
		return fmt.Errorf("failed to update event analysis: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}
