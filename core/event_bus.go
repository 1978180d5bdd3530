package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

type SendingHook interface {
	OnSending(ctx context.Context, event *SendingEvent) error
}

type SendingHookFunc func(ctx context.Context, event *SendingEvent) error

func (f SendingHookFunc) OnSending(ctx context.Context, event *SendingEvent) error {
	return f(ctx, event)
}

type DeliveryHook interface {
	OnDelivery(ctx context.Context, event DeliveryEvent) error
}

type DeliveryHookFunc func(ctx context.Context, event DeliveryEvent) error

func (f DeliveryHookFunc) OnDelivery(ctx context.Context, event DeliveryEvent) error {
	return f(ctx, event)
}

// EventBus is the in-process registry for outbound hooks. Each hook list is
// invoked synchronously in registration order.
type EventBus struct {
	mu      sync.RWMutex
	sending []SendingHook
	sent    []DeliveryHook
	queued  []DeliveryHook
}

func NewEventBus() *EventBus {
	return &EventBus{
		sending: make([]SendingHook, 0),
		sent:    make([]DeliveryHook, 0),
		queued:  make([]DeliveryHook, 0),
	}
}

func (b *EventBus) OnSending(hook SendingHook) {
	if b == nil || hook == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sending = append(b.sending, hook)
}

func (b *EventBus) OnSent(hook DeliveryHook) {
	if b == nil || hook == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, hook)
}

func (b *EventBus) OnQueued(hook DeliveryHook) {
	if b == nil || hook == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queued = append(b.queued, hook)
}

// DispatchSending runs pre-send hooks until one cancels the event. A hook
// error aborts the attempt and is returned to the caller.
func (b *EventBus) DispatchSending(ctx context.Context, event *SendingEvent) error {
	if event == nil {
		return fmt.Errorf("core: sending event is required")
	}
	for _, hook := range b.sendingHooks() {
		if event.Cancelled() {
			return nil
		}
		if err := hook.OnSending(ctx, event); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "core: sending hook failed").
				WithCode(http.StatusInternalServerError).
				WithTextCode(ErrorHookFailed).
				WithMetadata(map[string]any{"kind": string(event.Kind), "to": event.To})
		}
	}
	return nil
}

// DispatchSent notifies every sent hook. The delivery already happened, so
// failures are aggregated for logging and never undo the send.
func (b *EventBus) DispatchSent(ctx context.Context, event DeliveryEvent) error {
	return dispatchDelivery(ctx, "sent", b.sentHooks(), event)
}

func (b *EventBus) DispatchQueued(ctx context.Context, event DeliveryEvent) error {
	return dispatchDelivery(ctx, "queued", b.queuedHooks(), event)
}

func dispatchDelivery(ctx context.Context, phase string, hooks []DeliveryHook, event DeliveryEvent) error {
	var hookErr error
	for _, hook := range hooks {
		if err := hook.OnDelivery(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("%s hook failed: %w", phase, err))
		}
	}
	return hookErr
}

func (b *EventBus) sendingHooks() []SendingHook {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SendingHook, len(b.sending))
	copy(out, b.sending)
	return out
}

func (b *EventBus) sentHooks() []DeliveryHook {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DeliveryHook, len(b.sent))
	copy(out, b.sent)
	return out
}

func (b *EventBus) queuedHooks() []DeliveryHook {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DeliveryHook, len(b.queued))
	copy(out, b.queued)
	return out
}
