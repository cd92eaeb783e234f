package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

const escalationColumns = `
	id, title, message, detail, severity, source_type, source_id, source_ip,
	notification_completed, notification_completed_at, notification_ref, notification_error,
	ticket_completed, ticket_completed_at, ticket_ref, ticket_error,
	blocklist_completed, blocklist_completed_at, blocklist_ref, blocklist_error,
	created_at`

func scanEscalation(row pgx.Row) (*models.Escalation, error) {
	e := &models.Escalation{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Message, &e.Detail, &e.Severity,
		&e.SourceType, &e.SourceID, &e.SourceIP,
		&e.Notification.Completed, &e.Notification.CompletedAt, &e.Notification.Ref, &e.Notification.Error,
		&e.Ticket.Completed, &e.Ticket.CompletedAt, &e.Ticket.Ref, &e.Ticket.Error,
		&e.Blocklist.Completed, &e.Blocklist.CompletedAt, &e.Blocklist.Ref, &e.Blocklist.Error,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEscalation inserts a new escalation record. All channels start
// incomplete; delivery is asynchronous follow-up work.
func (r *PostgresRepository) CreateEscalation(ctx context.Context, e *models.Escalation) error {
	query := `
		INSERT INTO escalations (id, title, message, detail, severity,
			source_type, source_id, source_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	detail := e.Detail
	if detail == nil {
		detail = map[string]any{}
	}

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.Title, e.Message, detail, e.Severity,
		e.SourceType, e.SourceID, e.SourceIP, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// GetEscalationByID retrieves an escalation by ID
func (r *PostgresRepository) GetEscalationByID(ctx context.Context, id string) (*models.Escalation, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE id = $1`, escalationColumns)

	e, err := scanEscalation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEscalationNotFound
		}
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}

	return e, nil
}

// ListEscalations retrieves a paginated list of escalations
func (r *PostgresRepository) ListEscalations(ctx context.Context, req *models.ListEscalationsRequest) ([]*models.Escalation, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if req.SourceType != "" {
		whereClause += fmt.Sprintf(" AND source_type = $%d", argPos)
		args = append(args, req.SourceType)
		argPos++
	}
	if req.Pending {
		whereClause += " AND NOT (notification_completed AND ticket_completed AND blocklist_completed)"
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM escalations %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count escalations: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	args = append(args, req.Limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM escalations
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, escalationColumns, whereClause, argPos, argPos+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	escalations := []*models.Escalation{}
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan escalation: %w", err)
		}
		escalations = append(escalations, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return escalations, total, nil
}

// MarkChannelComplete records a successful channel delivery, clearing
// any prior error for that channel only.
func (r *PostgresRepository) MarkChannelComplete(ctx context.Context, id, channel, ref string) error {
	if !models.IsValidChannel(channel) {
		return fmt.Errorf("unknown escalation channel: %s", channel)
	}

	// Channel names are validated above, so the column prefix is safe
	// to interpolate.
	query := fmt.Sprintf(`
		UPDATE escalations
		SET %[1]s_completed = TRUE,
			%[1]s_completed_at = now(),
			%[1]s_ref = $2,
			%[1]s_error = NULL
		WHERE id = $1
	`, channel)

	result, err := r.pool.Exec(ctx, query, id, ref)
	if err != nil {
		return fmt.Errorf("failed to mark channel complete: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEscalationNotFound
	}

	return nil
}

// MarkChannelFailed records a channel delivery failure without touching
// any other channel's state.
func (r *PostgresRepository) MarkChannelFailed(ctx context.Context, id, channel, errMsg string) error {
	if !models.IsValidChannel(channel) {
		return fmt.Errorf("unknown escalation channel: %s", channel)
	}

	query := fmt.Sprintf(`
		UPDATE escalations
		SET %[1]s_error = $2
		WHERE id = $1
	`, channel)

	result, err := r.pool.Exec(ctx, query, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark channel failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEscalationNotFound
	}

	return nil
}

// UpsertBlocklistEntry inserts an IP into the blocklist or, for a repeat
// offender, increments its block_count and reactivates it. The IP is the
// natural key; re-blocking never creates a duplicate row.
func (r *PostgresRepository) UpsertBlocklistEntry(ctx context.Context, ip string, severity int, escalationID string) (*models.BlocklistEntry, error) {
	query := `
		INSERT INTO blocklist (ip, severity, escalation_id, block_count, is_active, first_blocked_at, updated_at)
		VALUES ($1, $2, $3, 1, TRUE, now(), now())
		ON CONFLICT (ip) DO UPDATE SET
			block_count = blocklist.block_count + 1,
			severity = GREATEST(blocklist.severity, EXCLUDED.severity),
			escalation_id = EXCLUDED.escalation_id,
			is_active = TRUE,
			updated_at = now()
		RETURNING ip, severity, escalation_id, block_count, is_active, first_blocked_at, updated_at
	`

	b := &models.BlocklistEntry{}
	err := r.pool.QueryRow(ctx, query, ip, severity, escalationID).Scan(
		&b.IP, &b.Severity, &b.EscalationID, &b.BlockCount,
		&b.IsActive, &b.FirstBlockedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert blocklist entry: %w", err)
	}

	return b, nil
}

// ListBlocklist retrieves blocklist entries, optionally only active ones
func (r *PostgresRepository) ListBlocklist(ctx context.Context, activeOnly bool) ([]*models.BlocklistEntry, error) {
	query := `
		SELECT ip, severity, escalation_id, block_count, is_active, first_blocked_at, updated_at
		FROM blocklist
	`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	defer rows.Close()

	entries := []*models.BlocklistEntry{}
	for rows.Next() {
		b := &models.BlocklistEntry{}
		if err := rows.Scan(
			&b.IP, &b.Severity, &b.EscalationID, &b.BlockCount,
			&b.IsActive, &b.FirstBlockedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist entry: %w", err)
		}
		entries = append(entries, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}
