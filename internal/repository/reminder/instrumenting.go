package reminder

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics"

	"deadliner/internal/models"
)

// instrumentingMiddleware wraps Repository and enables request metrics
type instrumentingMiddleware struct {
	reqCount    metrics.Counter
	reqDuration metrics.Histogram
	svc         Repository
}

func (s *instrumentingMiddleware) observe(method string, err error, startTime time.Time) {
	labels := []string{
		"method", method,
		"error", strconv.FormatBool(err != nil),
	}
	s.reqCount.With(labels...).Add(1)
	s.reqDuration.With(labels...).Observe(time.Since(startTime).Seconds())
}

// CreateBatch ...
func (s *instrumentingMiddleware) CreateBatch(ctx context.Context, reminders []models.Reminder) (count int64, err error) {
	defer func(startTime time.Time) { s.observe("CreateBatch", err, startTime) }(time.Now())
	return s.svc.CreateBatch(ctx, reminders)
}

// CancelFuturePending ...
func (s *instrumentingMiddleware) CancelFuturePending(ctx context.Context, taskID int64, now time.Time) (count int64, err error) {
	defer func(startTime time.Time) { s.observe("CancelFuturePending", err, startTime) }(time.Now())
	return s.svc.CancelFuturePending(ctx, taskID, now)
}

// ListDue ...
func (s *instrumentingMiddleware) ListDue(ctx context.Context, from, to time.Time) (due []models.DueReminder, err error) {
	defer func(startTime time.Time) { s.observe("ListDue", err, startTime) }(time.Now())
	return s.svc.ListDue(ctx, from, to)
}

// Claim ...
func (s *instrumentingMiddleware) Claim(ctx context.Context, reminderID int64, now time.Time) (claimed bool, err error) {
	defer func(startTime time.Time) { s.observe("Claim", err, startTime) }(time.Now())
	return s.svc.Claim(ctx, reminderID, now)
}

// MarkSent ...
func (s *instrumentingMiddleware) MarkSent(ctx context.Context, reminderID int64, sentAt time.Time, providerMessageID string) (err error) {
	defer func(startTime time.Time) { s.observe("MarkSent", err, startTime) }(time.Now())
	return s.svc.MarkSent(ctx, reminderID, sentAt, providerMessageID)
}

// MarkFailed ...
func (s *instrumentingMiddleware) MarkFailed(ctx context.Context, reminderID int64, errMsg string) (err error) {
	defer func(startTime time.Time) { s.observe("MarkFailed", err, startTime) }(time.Now())
	return s.svc.MarkFailed(ctx, reminderID, errMsg)
}

// Cancel ...
func (s *instrumentingMiddleware) Cancel(ctx context.Context, reminderID int64, now time.Time) (err error) {
	defer func(startTime time.Time) { s.observe("Cancel", err, startTime) }(time.Now())
	return s.svc.Cancel(ctx, reminderID, now)
}

// ListByTask ...
func (s *instrumentingMiddleware) ListByTask(ctx context.Context, taskID int64) (reminders []models.Reminder, err error) {
	defer func(startTime time.Time) { s.observe("ListByTask", err, startTime) }(time.Now())
	return s.svc.ListByTask(ctx, taskID)
}

// CountSentToday ...
func (s *instrumentingMiddleware) CountSentToday(ctx context.Context, userID int64, now time.Time) (count int64, err error) {
	defer func(startTime time.Time) { s.observe("CountSentToday", err, startTime) }(time.Now())
	return s.svc.CountSentToday(ctx, userID, now)
}

// NewInstrumentingMiddleware ...
func NewInstrumentingMiddleware(
	reqCount metrics.Counter,
	reqDuration metrics.Histogram,
	svc Repository,
) Repository {
	return &instrumentingMiddleware{
		reqCount:    reqCount,
		reqDuration: reqDuration,
		svc:         svc,
	}
}
