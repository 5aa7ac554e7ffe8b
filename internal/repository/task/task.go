package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"deadliner/internal/models"
)

// ErrNotFound is returned when a task does not exist or belongs to another user.
var ErrNotFound = errors.New("task not found")

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the interface for task storage operations.
type Repository interface {
	Create(ctx context.Context, task *models.Task) (err error)
	Get(ctx context.Context, taskID, userID int64) (task *models.Task, err error)
	Update(ctx context.Context, task *models.Task) (err error)
	SetStatus(ctx context.Context, taskID, userID int64, status models.TaskStatus) (err error)
	SoftDelete(ctx context.Context, taskID, userID int64, now time.Time) (err error)
}

type repository struct {
	db Querier
}

// Create ...
func (r *repository) Create(ctx context.Context, task *models.Task) error {
	query := `
        INSERT INTO tasks (user_id, title, notes, tags, deadline_at, status)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		task.UserID, task.Title, task.Notes, task.Tags, task.DeadlineAt, models.TaskStatusActive,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.Status = models.TaskStatusActive
	return nil
}

// Get returns the task with the user's email joined in. The user id guards
// against cross-user access at the storage level.
func (r *repository) Get(ctx context.Context, taskID, userID int64) (*models.Task, error) {
	query := `
        SELECT t.id, t.user_id, t.title, COALESCE(t.notes, ''), t.tags, t.deadline_at,
               t.status, t.deleted_at, t.created_at, t.updated_at, u.email
        FROM tasks t
        JOIN users u ON u.id = t.user_id
        WHERE t.id = $1 AND t.user_id = $2
    `
	var task models.Task
	err := r.db.QueryRow(ctx, query, taskID, userID).Scan(
		&task.ID, &task.UserID, &task.Title, &task.Notes, &task.Tags, &task.DeadlineAt,
		&task.Status, &task.DeletedAt, &task.CreatedAt, &task.UpdatedAt, &task.Email,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &task, nil
}

// Update ...
func (r *repository) Update(ctx context.Context, task *models.Task) error {
	query := `
        UPDATE tasks
        SET title = $3, notes = NULLIF($4, ''), tags = $5, deadline_at = $6, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.db.Exec(ctx, query,
		task.ID, task.UserID, task.Title, task.Notes, task.Tags, task.DeadlineAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetStatus ...
func (r *repository) SetStatus(ctx context.Context, taskID, userID int64, status models.TaskStatus) error {
	query := `
        UPDATE tasks
        SET status = $3, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.db.Exec(ctx, query, taskID, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SoftDelete marks a task deleted without removing the row, so the reminder
// audit trail keeps a valid parent.
func (r *repository) SoftDelete(ctx context.Context, taskID, userID int64, now time.Time) error {
	query := `
        UPDATE tasks
        SET status = $3, deleted_at = $4, updated_at = NOW()
        WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
    `
	tag, err := r.db.Exec(ctx, query, taskID, userID, models.TaskStatusDeleted, now)
	if err != nil {
		return fmt.Errorf("failed to soft delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// NewRepository creates a new instance of the task repository.
func NewRepository(db Querier) Repository {
	return &repository{db: db}
}
