package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// OutboundPort is the dispatch contract shared by the provider backed
// Service and the in-memory test double.
type OutboundPort interface {
	SendMessage(ctx context.Context, to string, body string, opts MessageOptions) (DeliveryResult, error)
	SendMessageNow(ctx context.Context, to string, body string, opts MessageOptions) (DeliveryResult, error)
	QueueMessage(ctx context.Context, to string, body string, opts MessageOptions) (DeliveryResult, error)
	MakeCall(ctx context.Context, to string, url string, opts CallOptions) (DeliveryResult, error)
	MakeCallNow(ctx context.Context, to string, url string, opts CallOptions) (DeliveryResult, error)
	QueueCall(ctx context.Context, to string, url string, opts CallOptions) (DeliveryResult, error)
}

// ProviderMessageRequest is the assembled message-send payload. Exactly one
// of From and MessagingServiceSID is set.
type ProviderMessageRequest struct {
	To                  string
	From                string
	MessagingServiceSID string
	Body                string
	MediaURLs           []string
	StatusCallback      string
}

type ProviderCallRequest struct {
	To                   string
	From                 string
	URL                  string
	StatusCallback       string
	StatusCallbackEvents []string
	// Record is the provider string boolean ("true"/"false"), empty when unset.
	Record  string
	Timeout int
}

type ProviderResponse struct {
	SID      string
	Status   string
	Metadata map[string]any
}

// Provider is the outbound SMS/voice API. Failures are returned unchanged
// to the dispatcher caller.
type Provider interface {
	SendMessage(ctx context.Context, req ProviderMessageRequest) (ProviderResponse, error)
	CreateCall(ctx context.Context, req ProviderCallRequest) (ProviderResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

// JobAttemptNacker is implemented by deliveries that apply a retry policy
// keyed on the attempt number. It returns the options actually sent.
type JobAttemptNacker interface {
	NackForAttempt(ctx context.Context, opts JobNackOptions, attempt int) (JobNackOptions, error)
}

// JobAttemptReporter is implemented by deliveries whose backend counts
// redeliveries itself. Attempt is 1 on the first delivery.
type JobAttemptReporter interface {
	Attempt() int
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// JobExecutor runs a dequeued deferred unit.
type JobExecutor interface {
	ExecuteJob(ctx context.Context, msg *JobExecutionMessage) (DeliveryResult, error)
}
