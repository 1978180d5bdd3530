package core

import (
	"strings"
	"time"
)

// SendingEvent is the cancellable pre-send state for one dispatch attempt.
// A fresh event is built for every attempt, including queued execution.
type SendingEvent struct {
	Kind    DeliveryKind
	To      string
	Body    string
	URL     string
	Message MessageOptions
	Call    CallOptions

	cancelled bool
	reason    string
}

func NewMessageSendingEvent(to string, body string, opts MessageOptions) *SendingEvent {
	return &SendingEvent{
		Kind:    DeliveryKindMessage,
		To:      to,
		Body:    body,
		Message: opts.Clone(),
	}
}

func NewCallSendingEvent(to string, url string, opts CallOptions) *SendingEvent {
	return &SendingEvent{
		Kind: DeliveryKindCall,
		To:   to,
		URL:  url,
		Call: opts.Clone(),
	}
}

// Cancel marks the attempt as cancelled. Cancellation is terminal; a second
// call keeps the first reason.
func (e *SendingEvent) Cancel(reason string) {
	if e == nil || e.cancelled {
		return
	}
	e.cancelled = true
	e.reason = strings.TrimSpace(reason)
}

func (e *SendingEvent) Cancelled() bool {
	return e != nil && e.cancelled
}

func (e *SendingEvent) CancellationReason() string {
	if e == nil {
		return ""
	}
	return e.reason
}

func (e *SendingEvent) cancelledResult() DeliveryResult {
	return DeliveryResult{
		Kind:   e.Kind,
		Status: DeliveryStatusCancelled,
		To:     e.To,
		Reason: e.reason,
	}
}

// DeliveryEvent is broadcast after a provider call succeeds (sent hooks) or
// after a deferred unit is enqueued (queued hooks).
type DeliveryEvent struct {
	Kind       DeliveryKind
	To         string
	Body       string
	URL        string
	Result     DeliveryResult
	Message    MessageOptions
	Call       CallOptions
	Queue      string
	Delay      time.Duration
	OccurredAt time.Time
}
