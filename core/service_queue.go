package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// QueueMessage runs the pre-send hooks and enqueues a SendMessageJob. The
// hooks run again when the job executes.
func (s *Service) QueueMessage(ctx context.Context, to string, body string, opts MessageOptions) (result DeliveryResult, err error) {
	startedAt := s.timestamp()
	queue := s.resolveQueue(opts.Queue)
	defer func() {
		s.observeOperation(ctx, startedAt, "message.queue", err, map[string]any{
			"kind":   string(DeliveryKindMessage),
			"to":     to,
			"queue":  queue,
			"status": string(result.Status),
		})
	}()

	if err := validateMessage(to, body, opts); err != nil {
		return DeliveryResult{}, err
	}
	event := NewMessageSendingEvent(to, body, opts)
	if err := s.runSendingHooks(ctx, event); err != nil {
		return DeliveryResult{}, err
	}
	if event.Cancelled() {
		s.infoIfDebug(ctx, "twilio message cancelled", map[string]any{
			"to":     to,
			"reason": event.CancellationReason(),
		})
		return event.cancelledResult(), nil
	}

	delay := normalizeDelay(opts.Delay)
	unit := SendMessageJob{To: to, Body: body, Options: opts.Clone()}
	if err := s.enqueue(ctx, JobIDSendMessage, unit, queue, delay); err != nil {
		return DeliveryResult{}, err
	}

	result = DeliveryResult{
		Kind:          DeliveryKindMessage,
		Status:        DeliveryStatusQueued,
		To:            to,
		SegmentsCount: SegmentsCount(body),
		Queue:         queue,
	}
	s.notifyQueued(ctx, DeliveryEvent{
		Kind:    DeliveryKindMessage,
		To:      to,
		Body:    body,
		Result:  result,
		Message: opts.Clone(),
		Queue:   queue,
		Delay:   delay,
	})
	return result, nil
}

// QueueCall runs the pre-send hooks and enqueues a MakeCallJob.
func (s *Service) QueueCall(ctx context.Context, to string, url string, opts CallOptions) (result DeliveryResult, err error) {
	startedAt := s.timestamp()
	queue := s.resolveQueue(opts.Queue)
	defer func() {
		s.observeOperation(ctx, startedAt, "call.queue", err, map[string]any{
			"kind":   string(DeliveryKindCall),
			"to":     to,
			"queue":  queue,
			"status": string(result.Status),
		})
	}()

	if err := validateCall(to, url); err != nil {
		return DeliveryResult{}, err
	}
	event := NewCallSendingEvent(to, url, opts)
	if err := s.runSendingHooks(ctx, event); err != nil {
		return DeliveryResult{}, err
	}
	if event.Cancelled() {
		s.infoIfDebug(ctx, "twilio call cancelled", map[string]any{
			"to":     to,
			"reason": event.CancellationReason(),
		})
		return event.cancelledResult(), nil
	}

	delay := normalizeDelay(opts.Delay)
	unit := MakeCallJob{To: to, URL: url, Options: opts.Clone()}
	if err := s.enqueue(ctx, JobIDMakeCall, unit, queue, delay); err != nil {
		return DeliveryResult{}, err
	}

	result = DeliveryResult{
		Kind:   DeliveryKindCall,
		Status: DeliveryStatusQueued,
		To:     to,
		Queue:  queue,
	}
	s.notifyQueued(ctx, DeliveryEvent{
		Kind:   DeliveryKindCall,
		To:     to,
		URL:    url,
		Result: result,
		Call:   opts.Clone(),
		Queue:  queue,
		Delay:  delay,
	})
	return result, nil
}

// ExecuteJob runs a dequeued deferred unit. The pre-send hooks get a fresh
// event at execution time before the immediate path runs.
func (s *Service) ExecuteJob(ctx context.Context, msg *JobExecutionMessage) (DeliveryResult, error) {
	if msg == nil {
		return DeliveryResult{}, NewBadInputError("core: job message is required", nil)
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDSendMessage:
		job, err := DecodeSendMessageJob(msg)
		if err != nil {
			return DeliveryResult{}, NewBadInputError(err.Error(), map[string]any{"job_id": msg.JobID})
		}
		event := NewMessageSendingEvent(job.To, job.Body, job.Options)
		if err := s.runSendingHooks(ctx, event); err != nil {
			return DeliveryResult{}, err
		}
		if event.Cancelled() {
			s.infoIfDebug(ctx, "twilio queued message cancelled", map[string]any{
				"to":     job.To,
				"reason": event.CancellationReason(),
			})
			return event.cancelledResult(), nil
		}
		return s.SendMessageNow(ctx, job.To, job.Body, job.Options)
	case JobIDMakeCall:
		job, err := DecodeMakeCallJob(msg)
		if err != nil {
			return DeliveryResult{}, NewBadInputError(err.Error(), map[string]any{"job_id": msg.JobID})
		}
		event := NewCallSendingEvent(job.To, job.URL, job.Options)
		if err := s.runSendingHooks(ctx, event); err != nil {
			return DeliveryResult{}, err
		}
		if event.Cancelled() {
			s.infoIfDebug(ctx, "twilio queued call cancelled", map[string]any{
				"to":     job.To,
				"reason": event.CancellationReason(),
			})
			return event.cancelledResult(), nil
		}
		return s.MakeCallNow(ctx, job.To, job.URL, job.Options)
	default:
		return DeliveryResult{}, NewBadInputError("core: unsupported job id", map[string]any{"job_id": msg.JobID})
	}
}

func (s *Service) enqueue(ctx context.Context, jobID string, unit any, queue string, delay time.Duration) error {
	if s == nil || s.enqueuer == nil {
		return NewConfigurationError("core: job enqueuer is not configured", map[string]any{"queue": queue})
	}
	schedule := JobSchedule{Queue: queue}
	if delay > 0 {
		schedule.AvailableAt = s.timestamp().Add(delay)
	}
	msg, err := NewJobExecutionMessage(jobID, unit, schedule)
	if err != nil {
		return err
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "core: enqueue "+jobID+" failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorQueueFailed).
			WithMetadata(map[string]any{"queue": queue, "job_id": jobID})
	}
	return nil
}

func (s *Service) resolveQueue(queue string) string {
	if trimmed := strings.TrimSpace(queue); trimmed != "" {
		return trimmed
	}
	if s == nil {
		return DefaultQueueName
	}
	return s.config.QueueName()
}

func normalizeDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	return delay
}
