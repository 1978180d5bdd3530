package core

import (
	"context"
	"strconv"
	"strings"
)

// MakeCallNow runs the pre-send hooks and creates the call through the
// provider. Calls need a concrete sender number; messaging services do not
// apply.
func (s *Service) MakeCallNow(ctx context.Context, to string, url string, opts CallOptions) (result DeliveryResult, err error) {
	startedAt := s.timestamp()
	defer func() {
		s.observeOperation(ctx, startedAt, "call.create", err, map[string]any{
			"kind":   string(DeliveryKindCall),
			"to":     to,
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

	req, err := s.buildCallRequest(to, url, opts)
	if err != nil {
		return DeliveryResult{}, err
	}
	provider, err := s.requireProvider()
	if err != nil {
		return DeliveryResult{}, err
	}

	s.infoIfDebug(ctx, "twilio making call", map[string]any{
		"to":       to,
		"metadata": opts.Metadata,
	})
	response, err := provider.CreateCall(ctx, req)
	if err != nil {
		s.infoIfDebug(ctx, "twilio failed to make call", map[string]any{
			"to":    to,
			"error": err.Error(),
		})
		return DeliveryResult{}, err
	}

	result = DeliveryResult{
		Kind:           DeliveryKindCall,
		Status:         DeliveryStatusInitiated,
		To:             to,
		ProviderID:     response.SID,
		ProviderStatus: response.Status,
	}
	s.notifySent(ctx, DeliveryEvent{
		Kind:   DeliveryKindCall,
		To:     to,
		URL:    url,
		Result: result,
		Call:   opts.Clone(),
	})
	return result, nil
}

func (s *Service) buildCallRequest(to string, url string, opts CallOptions) (ProviderCallRequest, error) {
	from := strings.TrimSpace(opts.From)
	if from == "" {
		from = strings.TrimSpace(s.config.From)
	}
	if from == "" {
		return ProviderCallRequest{}, NewConfigurationError(
			"core: no from number configured for calls",
			map[string]any{"to": to},
		)
	}
	req := ProviderCallRequest{
		To:                   strings.TrimSpace(to),
		From:                 from,
		URL:                  strings.TrimSpace(url),
		StatusCallback:       strings.TrimSpace(opts.StatusCallback),
		StatusCallbackEvents: cloneStrings(opts.StatusCallbackEvents),
	}
	if opts.Record != nil {
		req.Record = strconv.FormatBool(*opts.Record)
	}
	if opts.Timeout > 0 {
		req.Timeout = opts.Timeout
	}
	return req, nil
}

func validateCall(to string, url string) error {
	if err := validateRecipient(to); err != nil {
		return err
	}
	if strings.TrimSpace(url) == "" {
		return NewBadInputError("core: call url is required", map[string]any{"to": to})
	}
	return nil
}
