package gojob

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-twilio/core"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original, err := core.NewJobExecutionMessage(JobIDSendMessage, core.SendMessageJob{
		To:   "+15551234567",
		Body: "hello",
	}, core.JobSchedule{Queue: "sms"})
	if err != nil {
		t.Fatalf("new job message: %v", err)
	}
	original.DedupPolicy = "drop"

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != original.JobID {
		t.Fatalf("expected job id %q, got %q", original.JobID, roundTrip.JobID)
	}
	if roundTrip.ScriptPath != original.ScriptPath {
		t.Fatalf("expected script path %q, got %q", original.ScriptPath, roundTrip.ScriptPath)
	}
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != original.DedupPolicy {
		t.Fatalf("expected dedup policy %q, got %q", original.DedupPolicy, roundTrip.DedupPolicy)
	}
	if core.JobQueue(roundTrip) != "sms" {
		t.Fatalf("expected queue to survive mapping, got %q", core.JobQueue(roundTrip))
	}
	unit, err := core.DecodeSendMessageJob(roundTrip)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unit.To != "+15551234567" || unit.Body != "hello" {
		t.Fatalf("expected payload to survive mapping, got %#v", unit)
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &core.JobExecutionMessage{
		JobID:          JobIDMakeCall,
		ScriptPath:     JobIDMakeCall,
		Parameters:     map[string]any{"queue": "voice"},
		IdempotencyKey: "idem-call",
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDMakeCall {
		t.Fatalf("expected mapped go-job message")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.JobID != JobIDMakeCall {
		t.Fatalf("expected mapped core message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{
			JobID:      JobIDSendMessage,
			ScriptPath: JobIDSendMessage,
		},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if _, err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "twilio 503",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if _, err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          JobIDSendMessage,
			ScriptPath:     JobIDSendMessage,
			IdempotencyKey: "idem-sms",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Message == nil {
		t.Fatalf("expected worker message mapping")
	}
	if coreHook.last.Message.JobID != JobIDSendMessage {
		t.Fatalf("expected job id mapping, got %q", coreHook.last.Message.JobID)
	}
	if coreHook.last.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", coreHook.last.Attempt)
	}
	if coreHook.last.Delay != 5*time.Second {
		t.Fatalf("expected delay 5s, got %s", coreHook.last.Delay)
	}
	if coreHook.last.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration mapping")
	}
	if coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected started_at mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

func TestQueueRouter_RoutesByQueueName(t *testing.T) {
	ctx := context.Background()
	sms := &stubQueueEnqueuer{}
	fallback := &stubQueueEnqueuer{}
	router := NewQueueRouter(fallback).Route("sms", sms)

	smsJob, err := core.NewJobExecutionMessage(JobIDSendMessage, core.SendMessageJob{To: "+1", Body: "x"}, core.JobSchedule{Queue: "sms"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	callJob, err := core.NewJobExecutionMessage(JobIDMakeCall, core.MakeCallJob{To: "+1", URL: "https://example.com"}, core.JobSchedule{Queue: "voice"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := router.Enqueue(ctx, smsJob); err != nil {
		t.Fatalf("enqueue sms: %v", err)
	}
	if err := router.Enqueue(ctx, callJob); err != nil {
		t.Fatalf("enqueue call: %v", err)
	}
	if sms.last == nil || sms.last.JobID != JobIDSendMessage {
		t.Fatalf("expected sms queue to receive message job")
	}
	if fallback.last == nil || fallback.last.JobID != JobIDMakeCall {
		t.Fatalf("expected fallback queue to receive call job")
	}

	if err := NewQueueRouter(nil).Enqueue(ctx, callJob); err == nil {
		t.Fatalf("expected error when no enqueuer matches")
	}
}

type recordingProvider struct {
	messages []core.ProviderMessageRequest
}

func (p *recordingProvider) SendMessage(_ context.Context, req core.ProviderMessageRequest) (core.ProviderResponse, error) {
	p.messages = append(p.messages, req)
	return core.ProviderResponse{SID: "SM1", Status: "queued"}, nil
}

func (p *recordingProvider) CreateCall(context.Context, core.ProviderCallRequest) (core.ProviderResponse, error) {
	return core.ProviderResponse{SID: "CA1", Status: "queued"}, nil
}

func TestServiceQueuesThroughGoJobAndWorkerExecutes(t *testing.T) {
	ctx := context.Background()
	cfg := core.DefaultConfig()
	cfg.AccountSID = "AC123"
	cfg.AuthToken = "secret"
	cfg.From = "+15550000000"

	provider := &recordingProvider{}
	backend := &stubQueueEnqueuer{}
	svc, err := core.NewService(cfg,
		core.WithProvider(provider),
		core.WithEnqueuer(NewEnqueuerAdapter(backend)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.SendMessage(ctx, "+15551234567", "queued hello", core.MessageOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Status != core.DeliveryStatusQueued || len(provider.messages) != 0 {
		t.Fatalf("expected queued result without provider call, got %#v", result)
	}
	if backend.last == nil {
		t.Fatalf("expected go-job message")
	}

	raw := &stubQueueDelivery{msg: backend.last}
	workerLoop := core.NewQueueWorker(svc, NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}, RetryPolicy{}))
	if _, err := workerLoop.ProcessNext(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !raw.acked {
		t.Fatalf("expected go-job delivery to be acked")
	}
	if len(provider.messages) != 1 || provider.messages[0].Body != "queued hello" {
		t.Fatalf("expected provider call on execution, got %#v", provider.messages)
	}
}

type unavailableProvider struct {
	calls int
}

func (p *unavailableProvider) SendMessage(context.Context, core.ProviderMessageRequest) (core.ProviderResponse, error) {
	p.calls++
	return core.ProviderResponse{}, goerrors.New("twilioapi: service unavailable", goerrors.CategoryExternal).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(core.ErrorProviderFailed)
}

func (p *unavailableProvider) CreateCall(context.Context, core.ProviderCallRequest) (core.ProviderResponse, error) {
	return core.ProviderResponse{}, errors.New("not used")
}

func TestWorkerRetryPolicyDeadLettersOnceAttemptsAreExhausted(t *testing.T) {
	ctx := context.Background()
	cfg := core.DefaultConfig()
	cfg.AccountSID = "AC123"
	cfg.AuthToken = "secret"
	cfg.From = "+15550000000"

	provider := &unavailableProvider{}
	backend := &stubQueueEnqueuer{}
	svc, err := core.NewService(cfg,
		core.WithProvider(provider),
		core.WithEnqueuer(NewEnqueuerAdapter(backend)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "+15551234567", "retry me", core.MessageOptions{}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	raw := &stubQueueDelivery{msg: backend.last}
	policy := RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true}
	workerLoop := core.NewQueueWorker(svc, NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}, policy))

	outcome, _ := workerLoop.ProcessNext(ctx)
	if outcome != core.WorkerOutcomeRetried {
		t.Fatalf("expected retry on first failure, got %q", outcome)
	}
	if !raw.nackOpts.Requeue || raw.nackOpts.DeadLetter {
		t.Fatalf("expected requeue nack, got %#v", raw.nackOpts)
	}

	outcome, _ = workerLoop.ProcessNext(ctx)
	if outcome != core.WorkerOutcomeDeadLettered {
		t.Fatalf("expected dead letter on second failure, got %q", outcome)
	}
	if raw.nackOpts.Requeue || !raw.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter nack, got %#v", raw.nackOpts)
	}
	if provider.calls != 2 {
		t.Fatalf("expected two provider attempts, got %d", provider.calls)
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}
