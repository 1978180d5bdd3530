package core

import (
	"context"
	"sync"
	"time"
)

type stubProvider struct {
	mu       sync.Mutex
	messages []ProviderMessageRequest
	calls    []ProviderCallRequest
	err      error
}

func (p *stubProvider) SendMessage(_ context.Context, req ProviderMessageRequest) (ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return ProviderResponse{}, p.err
	}
	p.messages = append(p.messages, req)
	return ProviderResponse{SID: "SM123", Status: "queued"}, nil
}

func (p *stubProvider) CreateCall(_ context.Context, req ProviderCallRequest) (ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return ProviderResponse{}, p.err
	}
	p.calls = append(p.calls, req)
	return ProviderResponse{SID: "CA123", Status: "queued"}, nil
}

func (p *stubProvider) messageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type stubEnqueuer struct {
	messages []*JobExecutionMessage
	err      error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type stubDelivery struct {
	msg      *JobExecutionMessage
	acked    bool
	nacked   bool
	nackOpts JobNackOptions
}

func (d *stubDelivery) Message() *JobExecutionMessage { return d.msg }

func (d *stubDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *stubDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	d.nacked = true
	d.nackOpts = opts
	return nil
}

type stubDequeuer struct {
	deliveries []*stubDelivery
}

func (d *stubDequeuer) Dequeue(context.Context) (JobDelivery, error) {
	if len(d.deliveries) == 0 {
		return nil, errQueueEmpty
	}
	next := d.deliveries[0]
	d.deliveries = d.deliveries[1:]
	return next, nil
}

type stubQueueError string

func (e stubQueueError) Error() string { return string(e) }

const errQueueEmpty = stubQueueError("queue empty")

type capturingWorkerHook struct {
	started   int
	succeeded int
	failed    int
	retried   int
	last      JobWorkerEvent
}

func (h *capturingWorkerHook) OnStart(_ context.Context, event JobWorkerEvent) {
	h.started++
	h.last = event
}

func (h *capturingWorkerHook) OnSuccess(_ context.Context, event JobWorkerEvent) {
	h.succeeded++
	h.last = event
}

func (h *capturingWorkerHook) OnFailure(_ context.Context, event JobWorkerEvent) {
	h.failed++
	h.last = event
}

func (h *capturingWorkerHook) OnRetry(_ context.Context, event JobWorkerEvent) {
	h.retried++
	h.last = event
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func immediateConfig() Config {
	cfg := DefaultConfig()
	cfg.AccountSID = "AC123"
	cfg.AuthToken = "secret"
	cfg.From = "+15550000000"
	cfg.Queue.Enabled = false
	return cfg
}

func queuedConfig() Config {
	cfg := immediateConfig()
	cfg.Queue.Enabled = true
	cfg.Queue.Name = "sms"
	return cfg
}

func newTestService(cfg Config, opts ...Option) (*Service, error) {
	base := []Option{WithClock(fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))}
	return NewService(cfg, append(base, opts...)...)
}
