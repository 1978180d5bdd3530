package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestEventBusDispatchSending_OrderAndStopOnCancel(t *testing.T) {
	bus := NewEventBus()
	order := []string{}
	bus.OnSending(SendingHookFunc(func(_ context.Context, event *SendingEvent) error {
		order = append(order, "first")
		return nil
	}))
	bus.OnSending(SendingHookFunc(func(_ context.Context, event *SendingEvent) error {
		order = append(order, "second")
		event.Cancel("stop")
		return nil
	}))
	bus.OnSending(SendingHookFunc(func(_ context.Context, event *SendingEvent) error {
		order = append(order, "third")
		return nil
	}))

	event := NewCallSendingEvent("+15551234567", "https://example.com/twiml", CallOptions{})
	if err := bus.DispatchSending(context.Background(), event); err != nil {
		t.Fatalf("dispatch sending: %v", err)
	}
	if strings.Join(order, ",") != "first,second" {
		t.Fatalf("expected hooks to stop after cancellation, got %v", order)
	}
	if !event.Cancelled() || event.CancellationReason() != "stop" {
		t.Fatalf("expected cancelled event")
	}
}

func TestEventBusDispatchSending_HookErrorIsReturned(t *testing.T) {
	bus := NewEventBus()
	sentinel := errors.New("listener failed")
	bus.OnSending(SendingHookFunc(func(context.Context, *SendingEvent) error {
		return sentinel
	}))
	err := bus.DispatchSending(context.Background(), NewMessageSendingEvent("+1", "hi", MessageOptions{}))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if err := bus.DispatchSending(context.Background(), nil); err == nil {
		t.Fatalf("expected nil event error")
	}
}

func TestEventBusDispatchSent_AggregatesErrors(t *testing.T) {
	bus := NewEventBus()
	first := errors.New("first")
	second := errors.New("second")
	calls := 0
	bus.OnSent(DeliveryHookFunc(func(context.Context, DeliveryEvent) error {
		calls++
		return first
	}))
	bus.OnSent(DeliveryHookFunc(func(context.Context, DeliveryEvent) error {
		calls++
		return second
	}))
	bus.OnQueued(DeliveryHookFunc(func(context.Context, DeliveryEvent) error {
		t.Fatalf("queued hook must not run on sent dispatch")
		return nil
	}))

	err := bus.DispatchSent(context.Background(), DeliveryEvent{Kind: DeliveryKindMessage})
	if calls != 2 {
		t.Fatalf("expected every sent hook to run, got %d", calls)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected aggregated hook errors, got %v", err)
	}
}

func TestEventBus_NilSafe(t *testing.T) {
	var bus *EventBus
	bus.OnSent(DeliveryHookFunc(func(context.Context, DeliveryEvent) error { return nil }))
	if err := bus.DispatchQueued(context.Background(), DeliveryEvent{}); err != nil {
		t.Fatalf("expected nil bus dispatch to be a no-op, got %v", err)
	}
	if err := bus.DispatchSending(context.Background(), NewMessageSendingEvent("+1", "hi", MessageOptions{})); err != nil {
		t.Fatalf("expected nil bus sending dispatch to be a no-op, got %v", err)
	}
}

func TestEventBusDispatchSending_WrapsHookErrors(t *testing.T) {
	bus := NewEventBus()
	bus.OnSending(SendingHookFunc(func(context.Context, *SendingEvent) error {
		return errors.New("opt-out lookup failed")
	}))

	err := bus.DispatchSending(context.Background(), NewCallSendingEvent("+15551234567", "https://example.com/twiml", CallOptions{}))
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors error, got %T %v", err, err)
	}
	if rich.TextCode != ErrorHookFailed || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("unexpected hook error classification: %q %q", rich.TextCode, rich.Category)
	}
	if rich.Metadata["kind"] != string(DeliveryKindCall) {
		t.Fatalf("expected call kind metadata, got %#v", rich.Metadata)
	}
}
