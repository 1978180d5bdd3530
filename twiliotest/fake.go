// Package twiliotest provides an in-memory core.OutboundPort that records
// messages and calls instead of contacting the provider.
package twiliotest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-twilio/core"
)

const (
	RecordSent      = "sent"
	RecordQueued    = "queued"
	RecordInitiated = "initiated"
)

type RecordedMessage struct {
	Type          string
	To            string
	Body          string
	Options       core.MessageOptions
	ProviderID    string
	Status        core.DeliveryStatus
	SegmentsCount int
	Queue         string
	Delay         time.Duration
}

type RecordedCall struct {
	Type       string
	To         string
	URL        string
	Options    core.CallOptions
	ProviderID string
	Status     core.DeliveryStatus
	Queue      string
	Delay      time.Duration
}

type Option func(*Fake)

func WithConfig(cfg core.Config) Option {
	return func(f *Fake) {
		f.config = cfg
	}
}

// WithEventBus shares hooks with a real service so the same subscribers
// observe fake deliveries.
func WithEventBus(events *core.EventBus) Option {
	return func(f *Fake) {
		if events != nil {
			f.events = events
		}
	}
}

// WithLogger receives sent and queued hook failures, which the fake logs and
// otherwise ignores like core.Service does.
func WithLogger(logger core.Logger) Option {
	return func(f *Fake) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fake) {
		if now != nil {
			f.now = now
		}
	}
}

// Fake is a drop-in OutboundPort. SendMessage and MakeCall run the pre-send
// gate; the Now and Queue variants record unconditionally.
type Fake struct {
	mu       sync.Mutex
	config   core.Config
	events   *core.EventBus
	now      func() time.Time
	logger   core.Logger
	messages []RecordedMessage
	calls    []RecordedCall
}

func NewFake(opts ...Option) *Fake {
	cfg := core.DefaultConfig()
	cfg.Queue.Enabled = false
	fake := &Fake{
		config: cfg,
		events: core.NewEventBus(),
		now:    time.Now,
		logger: glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fake)
		}
	}
	return fake
}

func (f *Fake) Events() *core.EventBus {
	return f.events
}

func (f *Fake) SendMessage(ctx context.Context, to string, body string, opts core.MessageOptions) (core.DeliveryResult, error) {
	event := core.NewMessageSendingEvent(to, body, opts)
	if err := f.events.DispatchSending(ctx, event); err != nil {
		return core.DeliveryResult{}, err
	}
	if event.Cancelled() {
		return cancelled(event), nil
	}
	if f.config.Queue.Enabled {
		return f.QueueMessage(ctx, to, body, opts)
	}
	return f.SendMessageNow(ctx, to, body, opts)
}

func (f *Fake) SendMessageNow(ctx context.Context, to string, body string, opts core.MessageOptions) (core.DeliveryResult, error) {
	record := f.recordMessage(RecordSent, core.DeliveryStatusSent, to, body, opts, "", 0)
	result := core.DeliveryResult{
		Kind:           core.DeliveryKindMessage,
		Status:         core.DeliveryStatusSent,
		To:             to,
		ProviderID:     record.ProviderID,
		ProviderStatus: RecordSent,
		SegmentsCount:  record.SegmentsCount,
	}
	f.notifySent(ctx, core.DeliveryEvent{
		Kind:       core.DeliveryKindMessage,
		To:         to,
		Body:       body,
		Result:     result,
		Message:    record.Options,
		OccurredAt: f.timestamp(),
	})
	return result, nil
}

func (f *Fake) QueueMessage(ctx context.Context, to string, body string, opts core.MessageOptions) (core.DeliveryResult, error) {
	queue := f.resolveQueue(opts.Queue)
	record := f.recordMessage(RecordQueued, core.DeliveryStatusQueued, to, body, opts, queue, opts.Delay)
	result := core.DeliveryResult{
		Kind:          core.DeliveryKindMessage,
		Status:        core.DeliveryStatusQueued,
		To:            to,
		ProviderID:    record.ProviderID,
		SegmentsCount: record.SegmentsCount,
		Queue:         queue,
	}
	f.notifyQueued(ctx, core.DeliveryEvent{
		Kind:       core.DeliveryKindMessage,
		To:         to,
		Body:       body,
		Result:     result,
		Message:    record.Options,
		Queue:      queue,
		Delay:      opts.Delay,
		OccurredAt: f.timestamp(),
	})
	return result, nil
}

func (f *Fake) MakeCall(ctx context.Context, to string, url string, opts core.CallOptions) (core.DeliveryResult, error) {
	event := core.NewCallSendingEvent(to, url, opts)
	if err := f.events.DispatchSending(ctx, event); err != nil {
		return core.DeliveryResult{}, err
	}
	if event.Cancelled() {
		return cancelled(event), nil
	}
	if f.config.Queue.Enabled {
		return f.QueueCall(ctx, to, url, opts)
	}
	return f.MakeCallNow(ctx, to, url, opts)
}

func (f *Fake) MakeCallNow(ctx context.Context, to string, url string, opts core.CallOptions) (core.DeliveryResult, error) {
	record := f.recordCall(RecordInitiated, core.DeliveryStatusInitiated, to, url, opts, "", 0)
	result := core.DeliveryResult{
		Kind:           core.DeliveryKindCall,
		Status:         core.DeliveryStatusInitiated,
		To:             to,
		ProviderID:     record.ProviderID,
		ProviderStatus: RecordInitiated,
	}
	f.notifySent(ctx, core.DeliveryEvent{
		Kind:       core.DeliveryKindCall,
		To:         to,
		URL:        url,
		Result:     result,
		Call:       record.Options,
		OccurredAt: f.timestamp(),
	})
	return result, nil
}

func (f *Fake) QueueCall(ctx context.Context, to string, url string, opts core.CallOptions) (core.DeliveryResult, error) {
	queue := f.resolveQueue(opts.Queue)
	record := f.recordCall(RecordQueued, core.DeliveryStatusQueued, to, url, opts, queue, opts.Delay)
	result := core.DeliveryResult{
		Kind:       core.DeliveryKindCall,
		Status:     core.DeliveryStatusQueued,
		To:         to,
		ProviderID: record.ProviderID,
		Queue:      queue,
	}
	f.notifyQueued(ctx, core.DeliveryEvent{
		Kind:       core.DeliveryKindCall,
		To:         to,
		URL:        url,
		Result:     result,
		Call:       record.Options,
		Queue:      queue,
		Delay:      opts.Delay,
		OccurredAt: f.timestamp(),
	})
	return result, nil
}

func (f *Fake) notifySent(ctx context.Context, event core.DeliveryEvent) {
	if err := f.events.DispatchSent(ctx, event); err != nil {
		f.logger.Error("twilio sent hooks failed", "kind", string(event.Kind), "to", event.To, "error", err.Error())
	}
}

func (f *Fake) notifyQueued(ctx context.Context, event core.DeliveryEvent) {
	if err := f.events.DispatchQueued(ctx, event); err != nil {
		f.logger.Error("twilio queued hooks failed",
			"kind", string(event.Kind), "to", event.To, "queue", event.Queue, "error", err.Error())
	}
}

// Messages returns a copy of every recorded message, sent or queued.
func (f *Fake) Messages() []RecordedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedMessage(nil), f.messages...)
}

func (f *Fake) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

func (f *Fake) recordMessage(
	kind string,
	status core.DeliveryStatus,
	to string,
	body string,
	opts core.MessageOptions,
	queue string,
	delay time.Duration,
) RecordedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := RecordedMessage{
		Type:          kind,
		To:            to,
		Body:          body,
		Options:       opts.Clone(),
		ProviderID:    fmt.Sprintf("FAKE_SID_%d", len(f.messages)),
		Status:        status,
		SegmentsCount: core.SegmentsCount(body),
		Queue:         queue,
		Delay:         delay,
	}
	f.messages = append(f.messages, record)
	return record
}

func (f *Fake) recordCall(
	kind string,
	status core.DeliveryStatus,
	to string,
	url string,
	opts core.CallOptions,
	queue string,
	delay time.Duration,
) RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := RecordedCall{
		Type:       kind,
		To:         to,
		URL:        url,
		Options:    opts.Clone(),
		ProviderID: fmt.Sprintf("FAKE_CALL_SID_%d", len(f.calls)),
		Status:     status,
		Queue:      queue,
		Delay:      delay,
	}
	f.calls = append(f.calls, record)
	return record
}

func (f *Fake) resolveQueue(queue string) string {
	if queue = strings.TrimSpace(queue); queue != "" {
		return queue
	}
	return f.config.QueueName()
}

func (f *Fake) timestamp() time.Time {
	return f.now().UTC()
}

func cancelled(event *core.SendingEvent) core.DeliveryResult {
	return core.DeliveryResult{
		Kind:   event.Kind,
		Status: core.DeliveryStatusCancelled,
		To:     event.To,
		Reason: event.CancellationReason(),
	}
}

var _ core.OutboundPort = (*Fake)(nil)
