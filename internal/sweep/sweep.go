// Package sweep implements the due-reminder processor: the periodic pass that
// picks up pending reminders inside the due window, re-validates the owning
// task, claims each reminder and hands it to the notifier.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"deadliner/internal/interval"
	"deadliner/internal/models"
	"deadliner/internal/notifier"
)

const (
	metricsNamespace = "deadliner"
	metricsSubsystem = "sweep"

	defaultHorizon       = 5 * time.Minute
	defaultMaxConcurrent = 4

	reasonTaskNotActive  = "task not active"
	reasonTaskDeleted    = "task deleted"
	reasonPastDeadline   = "past deadline"
	reasonAlreadyClaimed = "already claimed"
)

// ReminderStore is the storage surface the processor needs. Claim must be a
// compare-and-set on status = pending; it is the serialization point between
// overlapping sweeps.
type ReminderStore interface {
	ListDue(ctx context.Context, from, to time.Time) (due []models.DueReminder, err error)
	Claim(ctx context.Context, reminderID int64, now time.Time) (claimed bool, err error)
	MarkSent(ctx context.Context, reminderID int64, sentAt time.Time, providerMessageID string) (err error)
	MarkFailed(ctx context.Context, reminderID int64, errMsg string) (err error)
	Cancel(ctx context.Context, reminderID int64, now time.Time) (err error)
}

// Config ...
type Config struct {
	Horizon       time.Duration
	MaxConcurrent int64
}

// processorMetrics holds Prometheus metrics for the Processor.
type processorMetrics struct {
	sweepDuration     prometheus.Histogram
	remindersExamined prometheus.Counter
	outcomes          *prometheus.CounterVec
}

// Processor runs due-reminder sweeps.
type Processor struct {
	store    ReminderStore
	notifier notifier.Notifier
	metrics  *processorMetrics
	config   Config
}

// Run executes one sweep over [now, now+horizon]. Delivery attempts for
// distinct reminders are independent: a failure or storage hiccup on one is
// recorded in its outcome and never aborts the others. Only a failure of the
// initial selection fails the sweep itself; unclaimed pending reminders are
// naturally picked up again by the next run.
func (p *Processor) Run(ctx context.Context, now time.Time) (models.SweepReport, error) {
	report := models.SweepReport{RequestID: uuid.NewString()}

	defer func(startTime time.Time) {
		p.metrics.sweepDuration.Observe(time.Since(startTime).Seconds())
	}(time.Now())

	due, err := p.store.ListDue(ctx, now, now.Add(p.config.Horizon))
	if err != nil {
		return report, fmt.Errorf("failed to select due reminders: %w", err)
	}

	report.Processed = len(due)
	report.Results = make([]models.SweepOutcome, len(due))
	p.metrics.remindersExamined.Add(float64(len(due)))

	sem := semaphore.NewWeighted(p.config.MaxConcurrent)
	for i := range due {
		if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
			// Context gone; report whatever finished so far.
			report.Results = report.Results[:i]
			return report, acquireErr
		}
		go func(i int) {
			defer sem.Release(1)
			report.Results[i] = p.process(ctx, now, &due[i])
		}(i)
	}
	if err = sem.Acquire(ctx, p.config.MaxConcurrent); err != nil {
		return report, err
	}

	for _, outcome := range report.Results {
		p.metrics.outcomes.WithLabelValues(string(outcome.Status)).Inc()
	}

	log.WithFields(log.Fields{
		"request_id": report.RequestID,
		"processed":  report.Processed,
	}).Info("Sweep completed")

	return report, nil
}

// process drives one reminder through its status transitions.
func (p *Processor) process(ctx context.Context, now time.Time, due *models.DueReminder) models.SweepOutcome {
	outcome := models.SweepOutcome{ReminderID: due.ID, Status: due.Status}

	// Re-validate the owning task: state may have changed since scheduling.
	if reason := p.cancelReason(due); reason != "" {
		if err := p.store.Cancel(ctx, due.ID, now); err != nil {
			log.WithError(err).WithField("reminder_id", due.ID).Error("Failed to cancel stale reminder")
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = models.ReminderStatusCanceled
		outcome.Reason = reason
		return outcome
	}

	claimed, err := p.store.Claim(ctx, due.ID, now)
	if err != nil {
		log.WithError(err).WithField("reminder_id", due.ID).Error("Failed to claim reminder")
		outcome.Error = err.Error()
		return outcome
	}
	if !claimed {
		// A concurrent sweep got here first.
		outcome.Status = models.ReminderStatusProcessing
		outcome.Reason = reasonAlreadyClaimed
		return outcome
	}

	result, sendErr := p.notifier.Send(ctx, notifier.Email{
		To:            due.TaskEmail,
		TaskTitle:     due.TaskTitle,
		DeadlineAt:    due.TaskDeadlineAt,
		Notes:         due.TaskNotes,
		Tags:          due.TaskTags,
		IntervalLabel: interval.Label(due.IntervalKey),
	})
	if sendErr != nil {
		if err = p.store.MarkFailed(ctx, due.ID, sendErr.Error()); err != nil {
			log.WithError(err).WithField("reminder_id", due.ID).Error("Failed to record delivery failure")
		}
		outcome.Status = models.ReminderStatusFailed
		outcome.Error = sendErr.Error()
		return outcome
	}

	if err = p.store.MarkSent(ctx, due.ID, time.Now().UTC(), result.MessageID); err != nil {
		log.WithError(err).WithField("reminder_id", due.ID).Error("Failed to record delivery success")
		outcome.Error = err.Error()
	}
	outcome.Status = models.ReminderStatusSent
	outcome.MessageID = result.MessageID
	return outcome
}

// cancelReason returns a non-empty reason when the reminder must be canceled
// instead of delivered.
func (p *Processor) cancelReason(due *models.DueReminder) string {
	if due.TaskStatus == models.TaskStatusDeleted || due.TaskStatus == models.TaskStatusCompleted {
		return reasonTaskNotActive
	}
	if due.TaskDeletedAt != nil {
		return reasonTaskDeleted
	}
	// Stale row from a deadline that moved earlier.
	if due.ScheduledFor.After(due.TaskDeadlineAt) {
		return reasonPastDeadline
	}
	return ""
}

// newProcessorMetrics initializes and registers Prometheus metrics.
func newProcessorMetrics(reg prometheus.Registerer) *processorMetrics {
	metrics := &processorMetrics{
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of a due-reminder sweep in seconds",
		}),
		remindersExamined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reminders_examined_total",
			Help:      "Total number of reminders selected by sweeps",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reminder_outcomes_total",
			Help:      "Per-status outcomes of swept reminders",
		}, []string{"status"}),
	}

	reg.MustRegister(metrics.sweepDuration, metrics.remindersExamined, metrics.outcomes)
	return metrics
}

// NewProcessor creates a due-reminder Processor.
func NewProcessor(store ReminderStore, n notifier.Notifier, config Config, reg prometheus.Registerer) *Processor {
	if config.Horizon <= 0 {
		config.Horizon = defaultHorizon
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaultMaxConcurrent
	}

	return &Processor{
		store:    store,
		notifier: n,
		metrics:  newProcessorMetrics(reg),
		config:   config,
	}
}
