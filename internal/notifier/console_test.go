package notifier

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSubject(t *testing.T) {
	got := Subject(Email{TaskTitle: "file taxes", IntervalLabel: "1 week before deadline"})
	if got != "Reminder: file taxes - 1 week before deadline" {
		t.Fatalf("subject = %q", got)
	}
}

func TestTextBody(t *testing.T) {
	body := TextBody(Email{
		TaskTitle:     "file taxes",
		DeadlineAt:    time.Date(2026, 4, 15, 23, 59, 0, 0, time.UTC),
		Notes:         "gather receipts first",
		Tags:          []string{"finance", "urgent"},
		IntervalLabel: "3 days before deadline",
	})

	for _, want := range []string{
		"Task Reminder: file taxes",
		"Deadline: Wednesday, April 15, 2026",
		"Notes: gather receipts first",
		"Tags: finance, urgent",
		"This is a 3 days before deadline reminder.",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestTextBodyOmitsEmptySections(t *testing.T) {
	body := TextBody(Email{TaskTitle: "x", DeadlineAt: time.Now(), IntervalLabel: "Reminder"})
	if strings.Contains(body, "Notes:") {
		t.Fatalf("empty notes should be omitted:\n%s", body)
	}
	if !strings.Contains(body, "Tags: None") {
		t.Fatalf("tagless body should say None:\n%s", body)
	}
}

func TestConsoleSendReturnsMessageID(t *testing.T) {
	res, err := NewConsole().Send(context.Background(), Email{TaskTitle: "x", To: "user@example.com"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(res.MessageID, "console-") {
		t.Fatalf("message id = %q", res.MessageID)
	}
}
