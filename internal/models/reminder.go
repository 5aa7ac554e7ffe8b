package models

import "time"

// ReminderStatus represents the delivery status of a reminder.
type ReminderStatus string

// const ...
const (
	ReminderStatusPending    ReminderStatus = "pending"
	ReminderStatusProcessing ReminderStatus = "processing"
	ReminderStatusSent       ReminderStatus = "sent"
	ReminderStatusFailed     ReminderStatus = "failed"
	ReminderStatusCanceled   ReminderStatus = "canceled"
)

// Terminal reports whether no further transition out of the status is allowed.
func (s ReminderStatus) Terminal() bool {
	return s == ReminderStatusSent || s == ReminderStatusCanceled
}

// Reminder represents a single scheduled email reminder for a task.
// Rows are never physically deleted; cancellation is a status transition.
type Reminder struct {
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	ScheduledFor      time.Time      `json:"scheduled_for"`
	LastAttemptAt     *time.Time     `json:"last_attempt_at,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CanceledAt        *time.Time     `json:"canceled_at,omitempty"`
	Status            ReminderStatus `json:"status"`
	IntervalKey       string         `json:"interval_key,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	OffsetSeconds     int64          `json:"offset_seconds"`
	ID                int64          `json:"id"`
	TaskID            int64          `json:"task_id"`
	UserID            int64          `json:"user_id"`
	Attempts          int            `json:"attempts"`
}

// DueReminder is a reminder joined with the owning task fields the
// processor needs to validate eligibility and render the notification.
type DueReminder struct {
	Reminder
	TaskTitle      string     `json:"task_title"`
	TaskNotes      string     `json:"task_notes,omitempty"`
	TaskEmail      string     `json:"task_email"`
	TaskTags       []string   `json:"task_tags,omitempty"`
	TaskStatus     TaskStatus `json:"task_status"`
	TaskDeadlineAt time.Time  `json:"task_deadline_at"`
	TaskDeletedAt  *time.Time `json:"task_deleted_at,omitempty"`
}

// SweepOutcome records what happened to a single reminder during a sweep.
type SweepOutcome struct {
	ReminderID int64          `json:"reminder_id"`
	Status     ReminderStatus `json:"status"`
	MessageID  string         `json:"message_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// SweepReport aggregates the result of one due-reminder sweep.
type SweepReport struct {
	RequestID string         `json:"request_id"`
	Processed int            `json:"processed"`
	Results   []SweepOutcome `json:"results"`
}
