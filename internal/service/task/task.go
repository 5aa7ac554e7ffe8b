// Package task implements the task mutation flows. Every mutation runs the
// task write and the accompanying reminder scheduling inside one transaction,
// so a task update is never observable without its rescheduled reminders.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"deadliner/internal/interval"
	"deadliner/internal/models"
	reminderRepo "deadliner/internal/repository/reminder"
	taskRepo "deadliner/internal/repository/task"
	"deadliner/internal/scheduler"
)

// ErrNotFound is re-exported so handlers don't import the repository package.
var ErrNotFound = taskRepo.ErrNotFound

var (
	ErrEmptyTitle   = errors.New("task title is empty")
	ErrPastDeadline = errors.New("deadline must be in the future")
)

// Service ...
type Service struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// CreateParams ...
type CreateParams struct {
	DeadlineAt   time.Time
	Title        string
	Notes        string
	Tags         []string
	IntervalKeys []string
	UserID       int64
}

// UpdateParams carries the optional fields of a task update. Nil means the
// field is untouched; reminders are rescheduled only when the deadline or the
// interval selection actually changes.
type UpdateParams struct {
	DeadlineAt   *time.Time
	Title        *string
	Notes        *string
	Tags         []string
	IntervalKeys []string
	TaskID       int64
	UserID       int64
}

// Create inserts the task and schedules its reminders in one transaction.
// An empty interval selection means the full catalog.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Task, error) {
	now := s.now()

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if !params.DeadlineAt.After(now) {
		return nil, ErrPastDeadline
	}

	keys := params.IntervalKeys
	if len(keys) == 0 {
		keys = interval.Keys()
	}

	task := &models.Task{
		UserID:     params.UserID,
		Title:      title,
		Notes:      params.Notes,
		Tags:       params.Tags,
		DeadlineAt: params.DeadlineAt.UTC(),
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if txErr := taskRepo.NewRepository(tx).Create(ctx, task); txErr != nil {
			return txErr
		}
		sched := scheduler.New(reminderRepo.NewRepository(tx))
		_, txErr := sched.Schedule(ctx, task.ID, task.UserID, task.DeadlineAt, keys, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// Update applies the edits and reschedules reminders when timing changed.
// Pure metadata edits leave the reminder set alone.
func (s *Service) Update(ctx context.Context, params UpdateParams) (*models.Task, error) {
	now := s.now()

	if params.DeadlineAt != nil && !params.DeadlineAt.After(now) {
		return nil, ErrPastDeadline
	}

	var updated *models.Task
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tasks := taskRepo.NewRepository(tx)

		task, txErr := tasks.Get(ctx, params.TaskID, params.UserID)
		if txErr != nil {
			return txErr
		}

		deadlineChanged := false
		if params.DeadlineAt != nil && !params.DeadlineAt.UTC().Equal(task.DeadlineAt) {
			task.DeadlineAt = params.DeadlineAt.UTC()
			deadlineChanged = true
		}
		if params.Title != nil {
			title := strings.TrimSpace(*params.Title)
			if title == "" {
				return ErrEmptyTitle
			}
			task.Title = title
		}
		if params.Notes != nil {
			task.Notes = *params.Notes
		}
		if params.Tags != nil {
			task.Tags = params.Tags
		}

		if txErr = tasks.Update(ctx, task); txErr != nil {
			return txErr
		}

		if deadlineChanged || params.IntervalKeys != nil {
			keys := params.IntervalKeys
			if len(keys) == 0 {
				keys = interval.Keys()
			}
			sched := scheduler.New(reminderRepo.NewRepository(tx))
			if _, txErr = sched.Reschedule(ctx, task.ID, task.UserID, task.DeadlineAt, keys, now); txErr != nil {
				return txErr
			}
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Complete marks the task completed and cancels its future reminders.
// Reminders for inactive tasks are never recreated.
func (s *Service) Complete(ctx context.Context, taskID, userID int64) error {
	return s.deactivate(ctx, taskID, userID, models.TaskStatusCompleted)
}

// Delete soft-deletes the task and cancels its future reminders.
func (s *Service) Delete(ctx context.Context, taskID, userID int64) error {
	return s.deactivate(ctx, taskID, userID, models.TaskStatusDeleted)
}

func (s *Service) deactivate(ctx context.Context, taskID, userID int64, status models.TaskStatus) error {
	now := s.now()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		tasks := taskRepo.NewRepository(tx)

		var txErr error
		if status == models.TaskStatusDeleted {
			txErr = tasks.SoftDelete(ctx, taskID, userID, now)
		} else {
			txErr = tasks.SetStatus(ctx, taskID, userID, status)
		}
		if txErr != nil {
			return txErr
		}

		sched := scheduler.New(reminderRepo.NewRepository(tx))
		_, txErr = sched.CancelFuturePending(ctx, taskID, now)
		return txErr
	})
}

// Get ...
func (s *Service) Get(ctx context.Context, taskID, userID int64) (*models.Task, []models.Reminder, error) {
	task, err := taskRepo.NewRepository(s.pool).Get(ctx, taskID, userID)
	if err != nil {
		return nil, nil, err
	}

	reminders, err := reminderRepo.NewRepository(s.pool).ListByTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	return task, reminders, nil
}

// inTx runs fn inside a transaction; scheduling errors roll the whole
// mutation back (fail closed).
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			log.Errorf("failed to rollback transaction %v", rollbackErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// NewService ...
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		pool: pool,
		now:  time.Now,
	}
}
