package core

import (
	"context"
	"strings"
)

// SendMessageNow runs the pre-send hooks and calls the provider directly.
// Provider errors are returned unchanged.
func (s *Service) SendMessageNow(ctx context.Context, to string, body string, opts MessageOptions) (result DeliveryResult, err error) {
	startedAt := s.timestamp()
	defer func() {
		s.observeOperation(ctx, startedAt, "message.send", err, map[string]any{
			"kind":   string(DeliveryKindMessage),
			"to":     to,
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

	req, err := s.buildMessageRequest(to, body, opts)
	if err != nil {
		return DeliveryResult{}, err
	}
	provider, err := s.requireProvider()
	if err != nil {
		return DeliveryResult{}, err
	}

	s.infoIfDebug(ctx, "twilio sending message", map[string]any{
		"to":       to,
		"metadata": opts.Metadata,
	})
	response, err := provider.SendMessage(ctx, req)
	if err != nil {
		s.infoIfDebug(ctx, "twilio failed to send message", map[string]any{
			"to":    to,
			"error": err.Error(),
		})
		return DeliveryResult{}, err
	}

	result = DeliveryResult{
		Kind:           DeliveryKindMessage,
		Status:         DeliveryStatusSent,
		To:             to,
		ProviderID:     response.SID,
		ProviderStatus: response.Status,
		SegmentsCount:  SegmentsCount(body),
	}
	s.notifySent(ctx, DeliveryEvent{
		Kind:    DeliveryKindMessage,
		To:      to,
		Body:    body,
		Result:  result,
		Message: opts.Clone(),
	})
	return result, nil
}

// buildMessageRequest resolves the sender: explicit from, then messaging
// service (per call, then configured), then the configured default from.
func (s *Service) buildMessageRequest(to string, body string, opts MessageOptions) (ProviderMessageRequest, error) {
	req := ProviderMessageRequest{
		To:             strings.TrimSpace(to),
		Body:           body,
		MediaURLs:      cloneStrings(opts.MediaURLs),
		StatusCallback: opts.ResolveStatusCallback(),
	}
	switch {
	case strings.TrimSpace(opts.From) != "":
		req.From = strings.TrimSpace(opts.From)
	case strings.TrimSpace(opts.MessagingServiceSID) != "":
		req.MessagingServiceSID = strings.TrimSpace(opts.MessagingServiceSID)
	case strings.TrimSpace(s.config.MessagingServiceSID) != "":
		req.MessagingServiceSID = strings.TrimSpace(s.config.MessagingServiceSID)
	case strings.TrimSpace(s.config.From) != "":
		req.From = strings.TrimSpace(s.config.From)
	default:
		return ProviderMessageRequest{}, NewConfigurationError(
			"core: no from number or messaging service configured",
			map[string]any{"to": to},
		)
	}
	return req, nil
}

func validateMessage(to string, body string, opts MessageOptions) error {
	if err := validateRecipient(to); err != nil {
		return err
	}
	if body == "" && len(cloneStrings(opts.MediaURLs)) == 0 {
		return NewBadInputError("core: message body or media url is required", map[string]any{"to": to})
	}
	return nil
}
