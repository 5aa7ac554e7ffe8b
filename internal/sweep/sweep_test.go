package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"deadliner/internal/models"
	"deadliner/internal/notifier"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    map[int64]*models.DueReminder
	listErr error
}

func newFakeStore(rows ...models.DueReminder) *fakeStore {
	s := &fakeStore{rows: make(map[int64]*models.DueReminder, len(rows))}
	for i := range rows {
		r := rows[i]
		s.rows[r.ID] = &r
	}
	return s
}

func (s *fakeStore) ListDue(_ context.Context, from, to time.Time) ([]models.DueReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var due []models.DueReminder
	for _, r := range s.rows {
		if r.Status == models.ReminderStatusPending && !r.ScheduledFor.Before(from) && !r.ScheduledFor.After(to) {
			due = append(due, *r)
		}
	}
	return due, nil
}

func (s *fakeStore) Claim(_ context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != models.ReminderStatusPending {
		return false, nil
	}
	r.Status = models.ReminderStatusProcessing
	r.Attempts++
	attemptAt := now
	r.LastAttemptAt = &attemptAt
	return true, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id int64, sentAt time.Time, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	if r.Status != models.ReminderStatusProcessing {
		return nil
	}
	r.Status = models.ReminderStatusSent
	r.SentAt = &sentAt
	r.ProviderMessageID = messageID
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	if r.Status != models.ReminderStatusProcessing {
		return nil
	}
	r.Status = models.ReminderStatusFailed
	r.Error = errMsg
	return nil
}

func (s *fakeStore) Cancel(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	if r.Status != models.ReminderStatusPending && r.Status != models.ReminderStatusProcessing {
		return nil
	}
	r.Status = models.ReminderStatusCanceled
	canceledAt := now
	r.CanceledAt = &canceledAt
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []notifier.Email
	errBy map[string]error
}

func (n *fakeNotifier) Send(_ context.Context, email notifier.Email) (notifier.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.errBy[email.To]; ok {
		return notifier.Result{}, err
	}
	n.sends = append(n.sends, email)
	return notifier.Result{MessageID: "msg-" + email.To}, nil
}

func (n *fakeNotifier) sent() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func newProcessorForTest(store ReminderStore, n notifier.Notifier) *Processor {
	return NewProcessor(store, n, Config{}, prometheus.NewRegistry())
}

func dueReminder(id int64, scheduledFor, deadline time.Time) models.DueReminder {
	return models.DueReminder{
		Reminder: models.Reminder{
			ID:           id,
			TaskID:       id,
			UserID:       1,
			IntervalKey:  "P1D",
			ScheduledFor: scheduledFor,
			Status:       models.ReminderStatusPending,
		},
		TaskTitle:      "write report",
		TaskEmail:      "user@example.com",
		TaskStatus:     models.TaskStatusActive,
		TaskDeadlineAt: deadline,
	}
}

func TestRunDeliversDueReminder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(dueReminder(1, now.Add(2*time.Minute), now.Add(24*time.Hour)))
	fn := &fakeNotifier{}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Processed != 1 || len(report.Results) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	outcome := report.Results[0]
	if outcome.Status != models.ReminderStatusSent || outcome.MessageID == "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	row := store.rows[1]
	if row.Status != models.ReminderStatusSent || row.SentAt == nil || row.ProviderMessageID == "" {
		t.Fatalf("row not marked sent: %+v", row)
	}
	if row.Attempts != 1 || row.LastAttemptAt == nil {
		t.Fatalf("claim bookkeeping missing: %+v", row)
	}
	if fn.sent() != 1 {
		t.Fatalf("expected exactly one send, got %d", fn.sent())
	}
	if got := fn.sends[0].IntervalLabel; got != "1 day before deadline" {
		t.Fatalf("interval label = %q", got)
	}
}

func TestRunCancelsReminderOfCompletedTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := dueReminder(1, now.Add(2*time.Minute), now.Add(24*time.Hour))
	r.TaskStatus = models.TaskStatusCompleted
	store := newFakeStore(r)
	fn := &fakeNotifier{}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	outcome := report.Results[0]
	if outcome.Status != models.ReminderStatusCanceled || outcome.Reason != reasonTaskNotActive {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if store.rows[1].Status != models.ReminderStatusCanceled || store.rows[1].CanceledAt == nil {
		t.Fatalf("row not canceled: %+v", store.rows[1])
	}
	if fn.sent() != 0 {
		t.Fatal("notifier must not be called for an ineligible task")
	}
}

func TestRunCancelsReminderOfSoftDeletedTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := dueReminder(1, now.Add(2*time.Minute), now.Add(24*time.Hour))
	deletedAt := now.Add(-time.Hour)
	r.TaskDeletedAt = &deletedAt
	store := newFakeStore(r)
	fn := &fakeNotifier{}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := report.Results[0].Reason; got != reasonTaskDeleted {
		t.Fatalf("reason = %q", got)
	}
	if fn.sent() != 0 {
		t.Fatal("notifier must not be called for a deleted task")
	}
}

func TestRunCancelsReminderPastMovedDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Deadline moved earlier than the reminder's fire time.
	r := dueReminder(1, now.Add(2*time.Minute), now.Add(time.Minute))
	store := newFakeStore(r)
	fn := &fakeNotifier{}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	outcome := report.Results[0]
	if outcome.Status != models.ReminderStatusCanceled || outcome.Reason != reasonPastDeadline {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if fn.sent() != 0 {
		t.Fatal("stale reminder must not be delivered")
	}
}

func TestRunRecordsDeliveryFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(dueReminder(1, now.Add(2*time.Minute), now.Add(24*time.Hour)))
	fn := &fakeNotifier{errBy: map[string]error{"user@example.com": errors.New("SMTP timeout")}}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	outcome := report.Results[0]
	if outcome.Status != models.ReminderStatusFailed || outcome.Error != "SMTP timeout" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	row := store.rows[1]
	if row.Status != models.ReminderStatusFailed || row.Error != "SMTP timeout" {
		t.Fatalf("row not marked failed: %+v", row)
	}
	if row.Attempts != 1 || row.LastAttemptAt == nil {
		t.Fatalf("attempt bookkeeping missing: %+v", row)
	}
}

func TestRunIsolatesFailuresPerReminder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bad := dueReminder(1, now.Add(time.Minute), now.Add(24*time.Hour))
	bad.TaskEmail = "broken@example.com"
	good := dueReminder(2, now.Add(2*time.Minute), now.Add(24*time.Hour))
	store := newFakeStore(bad, good)
	fn := &fakeNotifier{errBy: map[string]error{"broken@example.com": errors.New("mailbox unavailable")}}
	p := newProcessorForTest(store, fn)

	report, err := p.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Processed != 2 {
		t.Fatalf("processed = %d", report.Processed)
	}
	if store.rows[1].Status != models.ReminderStatusFailed {
		t.Fatalf("reminder 1 should fail, got %s", store.rows[1].Status)
	}
	if store.rows[2].Status != models.ReminderStatusSent {
		t.Fatalf("reminder 2 should still be delivered, got %s", store.rows[2].Status)
	}
}

func TestRunSelectionFailureFailsSweep(t *testing.T) {
	storageErr := errors.New("storage down")
	store := newFakeStore()
	store.listErr = storageErr
	p := newProcessorForTest(store, &fakeNotifier{})

	report, err := p.Run(context.Background(), time.Now())
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("report should show zero progress, got %d", report.Processed)
	}
	if report.RequestID == "" {
		t.Fatal("report should still carry a request id")
	}
}

func TestConcurrentSweepsDeliverExactlyOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(dueReminder(1, now.Add(2*time.Minute), now.Add(24*time.Hour)))
	fn := &fakeNotifier{}
	p1 := newProcessorForTest(store, fn)
	p2 := newProcessorForTest(store, fn)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, p := range []*Processor{p1, p2} {
		go func(p *Processor) {
			defer wg.Done()
			if _, err := p.Run(context.Background(), now); err != nil {
				t.Errorf("run: %v", err)
			}
		}(p)
	}
	wg.Wait()

	if fn.sent() != 1 {
		t.Fatalf("expected exactly one delivery across racing sweeps, got %d", fn.sent())
	}
	if store.rows[1].Attempts != 1 {
		t.Fatalf("expected a single claim, attempts = %d", store.rows[1].Attempts)
	}
	if store.rows[1].Status != models.ReminderStatusSent {
		t.Fatalf("reminder should end sent, got %s", store.rows[1].Status)
	}
}
