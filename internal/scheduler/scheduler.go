// Package scheduler owns the reminder lifecycle around task mutations:
// computing which reminders should exist for a deadline, cancelling the ones
// that no longer should, and the cancel-then-recreate reschedule composition.
package scheduler

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"deadliner/internal/interval"
	"deadliner/internal/models"
)

// ReminderStore is the storage surface the scheduler needs. It is expected to
// run inside the same transaction as the task write that triggered the call.
type ReminderStore interface {
	CreateBatch(ctx context.Context, reminders []models.Reminder) (count int64, err error)
	CancelFuturePending(ctx context.Context, taskID int64, now time.Time) (count int64, err error)
}

// Service ...
type Service struct {
	store ReminderStore
}

// Schedule computes and persists the pending reminders for a task. For each
// interval key it admits a reminder only when the computed fire time falls
// strictly between now and the deadline; keys outside that window, and keys
// the catalog does not recognize, are dropped without error. Persisted rows
// that would duplicate an existing non-canceled (task, interval) pair are
// skipped by the store, so repeated calls are no-ops for represented keys.
func (s *Service) Schedule(ctx context.Context, taskID, userID int64, deadlineAt time.Time, intervalKeys []string, now time.Time) ([]models.Reminder, error) {
	seen := make(map[string]struct{}, len(intervalKeys))
	candidates := make([]models.Reminder, 0, len(intervalKeys))

	for _, rawKey := range intervalKeys {
		key := interval.Normalize(rawKey)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		offset, ok := interval.DurationOf(key)
		if !ok {
			// Unknown keys are skipped, not fatal, but silence here has
			// bitten before: an operator deserves a trace of the lost row.
			log.WithFields(log.Fields{
				"task_id":      taskID,
				"interval_key": rawKey,
			}).Warn("Unknown interval key, skipping reminder")
			continue
		}

		scheduledFor := deadlineAt.Add(-offset)
		if !scheduledFor.After(now) || !scheduledFor.Before(deadlineAt) {
			continue
		}

		candidates = append(candidates, models.Reminder{
			TaskID:        taskID,
			UserID:        userID,
			IntervalKey:   key,
			OffsetSeconds: int64(offset / time.Second),
			ScheduledFor:  scheduledFor,
			Status:        models.ReminderStatusPending,
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	created, err := s.store.CreateBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reminders: %w", err)
	}

	log.WithFields(log.Fields{
		"task_id":  taskID,
		"eligible": len(candidates),
		"created":  created,
	}).Info("Scheduled reminders")

	return candidates, nil
}

// CancelFuturePending cancels every pending reminder for the task whose fire
// time is still ahead of now. Reminders already sent, failed, in flight or
// past due are left untouched. Idempotent.
func (s *Service) CancelFuturePending(ctx context.Context, taskID int64, now time.Time) (int64, error) {
	count, err := s.store.CancelFuturePending(ctx, taskID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel reminders: %w", err)
	}

	if count > 0 {
		log.WithFields(log.Fields{
			"task_id": taskID,
			"count":   count,
		}).Info("Canceled future reminders")
	}

	return count, nil
}

// Reschedule cancels the task's future pending reminders and recreates them
// against the new deadline and interval selection. Invoked whenever the
// deadline or the enabled interval set changes; cancel-then-recreate keeps
// the invariants trivially intact at the cost of rewritten audit lines.
func (s *Service) Reschedule(ctx context.Context, taskID, userID int64, newDeadlineAt time.Time, intervalKeys []string, now time.Time) ([]models.Reminder, error) {
	if _, err := s.CancelFuturePending(ctx, taskID, now); err != nil {
		return nil, err
	}
	return s.Schedule(ctx, taskID, userID, newDeadlineAt, intervalKeys, now)
}

// New ...
func New(store ReminderStore) *Service {
	return &Service{store: store}
}
