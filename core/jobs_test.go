package core

import (
	"testing"
	"time"
)

func TestNewJobExecutionMessage_RoundTrip(t *testing.T) {
	availableAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	msg, err := NewJobExecutionMessage(JobIDSendMessage, SendMessageJob{
		To:   "+15551234567",
		Body: "hello",
		Options: MessageOptions{
			From:      "+15550000000",
			MediaURLs: []string{"https://example.com/a.png"},
			Metadata:  map[string]any{"campaign": "spring"},
		},
	}, JobSchedule{Queue: " sms ", AvailableAt: availableAt})
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	if msg.ScriptPath != JobIDSendMessage || msg.IdempotencyKey == "" {
		t.Fatalf("unexpected job envelope: %#v", msg)
	}
	if JobQueue(msg) != "sms" {
		t.Fatalf("expected trimmed queue, got %q", JobQueue(msg))
	}
	if !JobAvailableAt(msg).Equal(availableAt) {
		t.Fatalf("expected available_at %s, got %s", availableAt, JobAvailableAt(msg))
	}

	job, err := DecodeSendMessageJob(msg)
	if err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.To != "+15551234567" || job.Body != "hello" || job.Options.From != "+15550000000" {
		t.Fatalf("unexpected decoded job: %#v", job)
	}
	if len(job.Options.MediaURLs) != 1 || job.Options.Metadata["campaign"] != "spring" {
		t.Fatalf("expected options to survive encoding, got %#v", job.Options)
	}
}

func TestDecodeJob_RejectsMismatchedJobID(t *testing.T) {
	msg, err := NewJobExecutionMessage(JobIDMakeCall, MakeCallJob{To: "+1", URL: "https://example.com"}, JobSchedule{})
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	if !JobAvailableAt(msg).IsZero() {
		t.Fatalf("expected immediate job to have no available_at")
	}
	if _, err := DecodeSendMessageJob(msg); err == nil {
		t.Fatalf("expected job id mismatch error")
	}
	call, err := DecodeMakeCallJob(msg)
	if err != nil {
		t.Fatalf("decode call job: %v", err)
	}
	if call.URL != "https://example.com" {
		t.Fatalf("unexpected call job: %#v", call)
	}
}

func TestNewJobExecutionMessage_RequiresJobID(t *testing.T) {
	if _, err := NewJobExecutionMessage(" ", SendMessageJob{}, JobSchedule{}); err == nil {
		t.Fatalf("expected job id error")
	}
	if _, err := DecodeSendMessageJob(&JobExecutionMessage{JobID: JobIDSendMessage}); err == nil {
		t.Fatalf("expected missing payload error")
	}
}
