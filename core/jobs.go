package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	JobIDSendMessage = "twilio.message.send"
	JobIDMakeCall    = "twilio.call.create"
)

const (
	jobParamPayload     = "payload"
	jobParamQueue       = "queue"
	jobParamAvailableAt = "available_at"
)

// SendMessageJob is the deferred unit for a queued message.
type SendMessageJob struct {
	To      string         `json:"to"`
	Body    string         `json:"body"`
	Options MessageOptions `json:"options"`
}

// MakeCallJob is the deferred unit for a queued call.
type MakeCallJob struct {
	To      string      `json:"to"`
	URL     string      `json:"url"`
	Options CallOptions `json:"options"`
}

// JobSchedule describes where and when a deferred unit becomes runnable.
type JobSchedule struct {
	Queue       string
	AvailableAt time.Time
}

// NewJobExecutionMessage encodes a deferred unit into a queue message. The
// payload is stored as plain JSON-compatible values so any queue backend can
// serialize it.
func NewJobExecutionMessage(jobID string, unit any, schedule JobSchedule) (*JobExecutionMessage, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("core: job id is required")
	}
	payload, err := toJSONMap(unit)
	if err != nil {
		return nil, fmt.Errorf("core: encode %s job: %w", jobID, err)
	}
	params := map[string]any{
		jobParamPayload: payload,
		jobParamQueue:   strings.TrimSpace(schedule.Queue),
	}
	if !schedule.AvailableAt.IsZero() {
		params[jobParamAvailableAt] = schedule.AvailableAt.UTC().Format(time.RFC3339Nano)
	}
	return &JobExecutionMessage{
		JobID:          jobID,
		ScriptPath:     jobID,
		Parameters:     params,
		IdempotencyKey: uuid.NewString(),
	}, nil
}

// JobQueue returns the queue name recorded on a job message.
func JobQueue(msg *JobExecutionMessage) string {
	if msg == nil || msg.Parameters == nil {
		return ""
	}
	queue, _ := msg.Parameters[jobParamQueue].(string)
	return strings.TrimSpace(queue)
}

// JobAvailableAt returns the earliest execution time, zero when immediate.
func JobAvailableAt(msg *JobExecutionMessage) time.Time {
	if msg == nil || msg.Parameters == nil {
		return time.Time{}
	}
	switch value := msg.Parameters[jobParamAvailableAt].(type) {
	case time.Time:
		return value.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	default:
		return time.Time{}
	}
}

func DecodeSendMessageJob(msg *JobExecutionMessage) (SendMessageJob, error) {
	var job SendMessageJob
	if err := decodeJobPayload(msg, JobIDSendMessage, &job); err != nil {
		return SendMessageJob{}, err
	}
	return job, nil
}

func DecodeMakeCallJob(msg *JobExecutionMessage) (MakeCallJob, error) {
	var job MakeCallJob
	if err := decodeJobPayload(msg, JobIDMakeCall, &job); err != nil {
		return MakeCallJob{}, err
	}
	return job, nil
}

func decodeJobPayload(msg *JobExecutionMessage, jobID string, target any) error {
	if msg == nil {
		return fmt.Errorf("core: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != jobID {
		return fmt.Errorf("core: job %q is not %q", msg.JobID, jobID)
	}
	payload, ok := msg.Parameters[jobParamPayload]
	if !ok || payload == nil {
		return fmt.Errorf("core: job %q payload is required", jobID)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("core: encode %s payload: %w", jobID, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("core: decode %s payload: %w", jobID, err)
	}
	return nil
}

func toJSONMap(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
