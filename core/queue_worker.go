package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type WorkerOutcome string

const (
	WorkerOutcomeExecuted     WorkerOutcome = "executed"
	WorkerOutcomeCancelled    WorkerOutcome = "cancelled"
	WorkerOutcomeDeferred     WorkerOutcome = "deferred"
	WorkerOutcomeRetried      WorkerOutcome = "retried"
	WorkerOutcomeDeadLettered WorkerOutcome = "dead_lettered"
)

// QueueWorker pulls deferred units from a dequeuer and runs them through a
// JobExecutor. Units that are not yet due are nacked back with the remaining
// delay. Transient provider failures are requeued until MaxAttempts (zero
// means unbounded, or whatever a JobAttemptNacker delivery decides). Bad
// input, configuration, hook and provider 4xx errors are dead-lettered.
type QueueWorker struct {
	Executor     JobExecutor
	Dequeuer     JobDequeuer
	Hook         JobWorkerHook
	Logger       Logger
	RetryDelay   time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	Now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewQueueWorker(executor JobExecutor, dequeuer JobDequeuer) *QueueWorker {
	return &QueueWorker{
		Executor:     executor,
		Dequeuer:     dequeuer,
		Logger:       glog.Nop(),
		RetryDelay:   30 * time.Second,
		PollInterval: time.Second,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run processes jobs until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) error {
	if w == nil || w.Executor == nil || w.Dequeuer == nil {
		return fmt.Errorf("core: queue worker requires executor and dequeuer")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := w.ProcessNext(ctx)
		if err == nil {
			continue
		}
		w.logger().Warn("twilio queue worker iteration failed", "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollInterval()):
		}
	}
}

// ProcessNext dequeues and settles exactly one delivery.
func (w *QueueWorker) ProcessNext(ctx context.Context) (WorkerOutcome, error) {
	if w == nil || w.Executor == nil || w.Dequeuer == nil {
		return "", fmt.Errorf("core: queue worker requires executor and dequeuer")
	}
	delivery, err := w.Dequeuer.Dequeue(ctx)
	if err != nil {
		return "", err
	}
	if delivery == nil {
		return "", fmt.Errorf("core: dequeuer returned no delivery")
	}
	msg := delivery.Message()
	if msg == nil {
		return WorkerOutcomeDeadLettered, delivery.Nack(ctx, JobNackOptions{
			DeadLetter: true,
			Reason:     "missing job message",
		})
	}

	now := w.now()
	if availableAt := JobAvailableAt(msg); availableAt.After(now) {
		remaining := availableAt.Sub(now)
		return WorkerOutcomeDeferred, delivery.Nack(ctx, JobNackOptions{
			Delay:   remaining,
			Requeue: true,
			Reason:  "not yet due",
		})
	}

	event := JobWorkerEvent{Message: msg, StartedAt: now}
	w.onStart(ctx, event)
	result, execErr := w.Executor.ExecuteJob(ctx, msg)
	event.Duration = w.now().Sub(now)

	if execErr != nil {
		event.Err = execErr
		event.Attempt = w.recordAttempt(delivery, msg)
		if isPermanentJobError(execErr) {
			return w.deadLetter(ctx, delivery, event)
		}
		if w.MaxAttempts > 0 && event.Attempt >= w.MaxAttempts {
			return w.deadLetter(ctx, delivery, event)
		}

		event.Delay = w.retryDelay()
		applied, err := nackForAttempt(ctx, delivery, JobNackOptions{
			Delay:   event.Delay,
			Requeue: true,
			Reason:  execErr.Error(),
		}, event.Attempt)
		if err != nil {
			return WorkerOutcomeRetried, err
		}
		if applied.DeadLetter || !applied.Requeue {
			w.forgetAttempts(msg)
			w.onFailure(ctx, event)
			return WorkerOutcomeDeadLettered, execErr
		}
		w.onRetry(ctx, event)
		return WorkerOutcomeRetried, execErr
	}

	if err := delivery.Ack(ctx); err != nil {
		return "", err
	}
	w.forgetAttempts(msg)
	w.onSuccess(ctx, event)
	if result.Cancelled() {
		return WorkerOutcomeCancelled, nil
	}
	return WorkerOutcomeExecuted, nil
}

func (w *QueueWorker) deadLetter(ctx context.Context, delivery JobDelivery, event JobWorkerEvent) (WorkerOutcome, error) {
	w.forgetAttempts(event.Message)
	w.onFailure(ctx, event)
	if _, err := nackForAttempt(ctx, delivery, JobNackOptions{
		DeadLetter: true,
		Reason:     event.Err.Error(),
	}, event.Attempt); err != nil {
		return WorkerOutcomeDeadLettered, err
	}
	return WorkerOutcomeDeadLettered, event.Err
}

func nackForAttempt(ctx context.Context, delivery JobDelivery, opts JobNackOptions, attempt int) (JobNackOptions, error) {
	if nacker, ok := delivery.(JobAttemptNacker); ok {
		return nacker.NackForAttempt(ctx, opts, attempt)
	}
	return opts, delivery.Nack(ctx, opts)
}

// recordAttempt returns the 1-based attempt number of this failure. Backends
// that count redeliveries win; otherwise attempts are tracked in memory per
// idempotency key until the job is acked or dead-lettered.
func (w *QueueWorker) recordAttempt(delivery JobDelivery, msg *JobExecutionMessage) int {
	if reporter, ok := delivery.(JobAttemptReporter); ok && reporter.Attempt() > 0 {
		return reporter.Attempt()
	}
	if msg == nil || msg.IdempotencyKey == "" {
		return 1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attempts == nil {
		w.attempts = map[string]int{}
	}
	w.attempts[msg.IdempotencyKey]++
	return w.attempts[msg.IdempotencyKey]
}

func (w *QueueWorker) forgetAttempts(msg *JobExecutionMessage) {
	if msg == nil || msg.IdempotencyKey == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, msg.IdempotencyKey)
}

func isPermanentJobError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case ErrorConfiguration, ErrorBadInput, ErrorHookFailed:
		return true
	}
	// Provider 4xx other than auth and rate limits reject the request itself.
	if rich.Category == goerrors.CategoryExternal && rich.Code >= http.StatusBadRequest && rich.Code < http.StatusInternalServerError {
		return rich.Code != http.StatusUnauthorized && rich.Code != http.StatusTooManyRequests
	}
	return false
}

func (w *QueueWorker) onStart(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnStart(ctx, event)
	}
}

func (w *QueueWorker) onSuccess(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnSuccess(ctx, event)
	}
}

func (w *QueueWorker) onFailure(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnFailure(ctx, event)
	}
}

func (w *QueueWorker) onRetry(ctx context.Context, event JobWorkerEvent) {
	if w.Hook != nil {
		w.Hook.OnRetry(ctx, event)
	}
}

func (w *QueueWorker) logger() Logger {
	if w == nil || w.Logger == nil {
		return glog.Nop()
	}
	return w.Logger
}

func (w *QueueWorker) now() time.Time {
	if w != nil && w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *QueueWorker) retryDelay() time.Duration {
	if w != nil && w.RetryDelay > 0 {
		return w.RetryDelay
	}
	return 30 * time.Second
}

func (w *QueueWorker) pollInterval() time.Duration {
	if w != nil && w.PollInterval > 0 {
		return w.PollInterval
	}
	return time.Second
}
