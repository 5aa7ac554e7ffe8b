package models

import "time"

// TaskStatus represents the lifecycle status of a task.
type TaskStatus string

// const ...
const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusDeleted   TaskStatus = "deleted"
)

// Task represents a deadline-bearing task owned by a user.
type Task struct {
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeadlineAt time.Time  `json:"deadline_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	Status     TaskStatus `json:"status"`
	Title      string     `json:"title"`
	Notes      string     `json:"notes,omitempty"`
	Email      string     `json:"email"`
	Tags       []string   `json:"tags,omitempty"`
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
}

// Eligible reports whether reminders for the task may still be delivered.
func (t *Task) Eligible() bool {
	return t.Status == TaskStatusActive && t.DeletedAt == nil
}
