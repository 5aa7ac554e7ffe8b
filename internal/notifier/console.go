package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Console logs rendered reminder emails instead of transmitting them. Used in
// development and as the default when no real provider is configured.
type Console struct{}

// Send ...
func (Console) Send(_ context.Context, email Email) (Result, error) {
	log.WithFields(log.Fields{
		"to":      email.To,
		"subject": Subject(email),
	}).Info("Reminder email:\n" + TextBody(email))

	return Result{MessageID: fmt.Sprintf("console-%d", time.Now().UnixMilli())}, nil
}

// Subject ...
func Subject(email Email) string {
	return fmt.Sprintf("Reminder: %s - %s", email.TaskTitle, email.IntervalLabel)
}

// TextBody renders the plain-text reminder message.
func TextBody(email Email) string {
	tags := "None"
	if len(email.Tags) > 0 {
		tags = strings.Join(email.Tags, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task Reminder: %s\n\n", email.TaskTitle)
	fmt.Fprintf(&b, "Deadline: %s\n", email.DeadlineAt.Format("Monday, January 2, 2006"))
	if email.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", email.Notes)
	}
	fmt.Fprintf(&b, "Tags: %s\n\n", tags)
	fmt.Fprintf(&b, "This is a %s reminder.\n", email.IntervalLabel)
	b.WriteString("Please ensure this task is completed by the deadline.\n")

	return b.String()
}

// NewConsole ...
func NewConsole() Console {
	return Console{}
}
