package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"deadliner/internal/models"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so the same repository
// can run standalone or inside a caller-owned transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the interface for reminder storage operations.
type Repository interface {
	CreateBatch(ctx context.Context, reminders []models.Reminder) (count int64, err error)
	CancelFuturePending(ctx context.Context, taskID int64, now time.Time) (count int64, err error)
	ListDue(ctx context.Context, from, to time.Time) (due []models.DueReminder, err error)
	Claim(ctx context.Context, reminderID int64, now time.Time) (claimed bool, err error)
	MarkSent(ctx context.Context, reminderID int64, sentAt time.Time, providerMessageID string) (err error)
	MarkFailed(ctx context.Context, reminderID int64, errMsg string) (err error)
	Cancel(ctx context.Context, reminderID int64, now time.Time) (err error)
	ListByTask(ctx context.Context, taskID int64) (reminders []models.Reminder, err error)
	CountSentToday(ctx context.Context, userID int64, now time.Time) (count int64, err error)
}

type repository struct {
	db Querier
}

// CreateBatch inserts pending reminder rows in one statement. Rows that would
// duplicate an existing non-canceled (task, interval) pair are skipped, so
// scheduling stays safely repeatable.
func (r *repository) CreateBatch(ctx context.Context, reminders []models.Reminder) (int64, error) {
	if len(reminders) == 0 {
		return 0, nil
	}

	rows := make([]map[string]interface{}, len(reminders))
	for i := range reminders {
		rem := &reminders[i]
		rows[i] = map[string]interface{}{
			"task_id":        rem.TaskID,
			"user_id":        rem.UserID,
			"interval_key":   rem.IntervalKey,
			"offset_seconds": rem.OffsetSeconds,
			"scheduled_for":  rem.ScheduledFor,
		}
	}

	jsonData, err := json.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal reminders to JSON: %w", err)
	}

	query := `
        INSERT INTO reminders (task_id, user_id, interval_key, offset_seconds, scheduled_for, status)
        SELECT task_id, user_id, NULLIF(interval_key, ''), offset_seconds, scheduled_for, 'pending'
        FROM jsonb_to_recordset($1::jsonb) AS x(
            task_id bigint, user_id bigint, interval_key text, offset_seconds bigint, scheduled_for timestamptz
        )
        ON CONFLICT DO NOTHING
    `
	tag, err := r.db.Exec(ctx, query, jsonData)
	if err != nil {
		return 0, fmt.Errorf("failed to create reminders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CancelFuturePending transitions the task's pending reminders with a future
// scheduled_for to canceled. Sent, failed and in-flight rows are untouched.
func (r *repository) CancelFuturePending(ctx context.Context, taskID int64, now time.Time) (int64, error) {
	query := `
        UPDATE reminders
        SET status = 'canceled', canceled_at = $2, updated_at = NOW()
        WHERE task_id = $1 AND status = 'pending' AND scheduled_for > $2
    `
	tag, err := r.db.Exec(ctx, query, taskID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel future reminders: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListDue returns pending reminders scheduled within [from, to], joined with
// the owning task so the processor can re-validate eligibility without extra
// round trips.
func (r *repository) ListDue(ctx context.Context, from, to time.Time) ([]models.DueReminder, error) {
	query := `
        SELECT r.id, r.task_id, r.user_id, COALESCE(r.interval_key, ''), r.offset_seconds, r.scheduled_for,
               r.status, r.attempts, r.created_at, r.updated_at,
               t.title, COALESCE(t.notes, ''), t.tags, t.status, t.deadline_at, t.deleted_at, u.email
        FROM reminders r
        JOIN tasks t ON t.id = r.task_id
        JOIN users u ON u.id = r.user_id
        WHERE r.status = 'pending' AND r.scheduled_for >= $1 AND r.scheduled_for <= $2
        ORDER BY r.scheduled_for ASC
    `
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var due []models.DueReminder
	for rows.Next() {
		var d models.DueReminder
		if scanErr := rows.Scan(
			&d.ID, &d.TaskID, &d.UserID, &d.IntervalKey, &d.OffsetSeconds, &d.ScheduledFor,
			&d.Status, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
			&d.TaskTitle, &d.TaskNotes, &d.TaskTags, &d.TaskStatus, &d.TaskDeadlineAt, &d.TaskDeletedAt, &d.TaskEmail,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", scanErr)
		}
		due = append(due, d)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return due, nil
}

// Claim is the compare-and-set pending -> processing transition. Exactly one
// of two racing sweeps observes claimed=true for a given reminder.
func (r *repository) Claim(ctx context.Context, reminderID int64, now time.Time) (bool, error) {
	query := `
        UPDATE reminders
        SET status = 'processing', attempts = attempts + 1, last_attempt_at = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, reminderID, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkSent ...
func (r *repository) MarkSent(ctx context.Context, reminderID int64, sentAt time.Time, providerMessageID string) error {
	query := `
        UPDATE reminders
        SET status = 'sent', sent_at = $2, provider_message_id = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'processing'
    `
	_, err := r.db.Exec(ctx, query, reminderID, sentAt, providerMessageID)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return nil
}

// MarkFailed ...
func (r *repository) MarkFailed(ctx context.Context, reminderID int64, errMsg string) error {
	query := `
        UPDATE reminders
        SET status = 'failed', error = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'processing'
    `
	_, err := r.db.Exec(ctx, query, reminderID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark reminder failed: %w", err)
	}

	return nil
}

// Cancel transitions a single non-terminal reminder to canceled. Used by the
// sweep when the owning task is no longer eligible.
func (r *repository) Cancel(ctx context.Context, reminderID int64, now time.Time) error {
	query := `
        UPDATE reminders
        SET status = 'canceled', canceled_at = $2, updated_at = NOW()
        WHERE id = $1 AND status IN ('pending', 'processing')
    `
	_, err := r.db.Exec(ctx, query, reminderID, now)
	if err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}

	return nil
}

// ListByTask ...
func (r *repository) ListByTask(ctx context.Context, taskID int64) ([]models.Reminder, error) {
	query := `
        SELECT id, task_id, user_id, COALESCE(interval_key, ''), offset_seconds, scheduled_for, status,
               attempts, last_attempt_at, sent_at, canceled_at,
               COALESCE(provider_message_id, ''), COALESCE(error, ''), created_at, updated_at
        FROM reminders
        WHERE task_id = $1
        ORDER BY scheduled_for ASC
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders by task: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if scanErr := rows.Scan(
			&rem.ID, &rem.TaskID, &rem.UserID, &rem.IntervalKey, &rem.OffsetSeconds, &rem.ScheduledFor,
			&rem.Status, &rem.Attempts, &rem.LastAttemptAt, &rem.SentAt, &rem.CanceledAt,
			&rem.ProviderMessageID, &rem.Error, &rem.CreatedAt, &rem.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", scanErr)
		}
		reminders = append(reminders, rem)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return reminders, nil
}

// CountSentToday counts a user's reminders sent during the current UTC day.
func (r *repository) CountSentToday(ctx context.Context, userID int64, now time.Time) (int64, error) {
	dayStart := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	query := `
        SELECT COUNT(*) FROM reminders
        WHERE user_id = $1 AND status = 'sent' AND sent_at >= $2 AND sent_at < $3
    `
	var count int64
	err := r.db.QueryRow(ctx, query, userID, dayStart, dayStart.Add(24*time.Hour)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent reminders: %w", err)
	}

	return count, nil
}

// NewRepository creates a new instance of the reminder repository.
func NewRepository(db Querier) Repository {
	return &repository{db: db}
}
