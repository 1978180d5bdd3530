// Package notifications delivers application notifications as SMS messages
// or voice calls through a core.OutboundPort.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-twilio/core"
)

// SMSRoutable resolves the phone number an SMS notification goes to. An
// empty route skips delivery.
type SMSRoutable interface {
	RouteSMS(notification SMSNotification) string
}

type CallRoutable interface {
	RouteCall(notification CallNotification) string
}

// SMSNotification renders a notification as either a plain string or an
// *SMSMessage.
type SMSNotification interface {
	ToSMS(notifiable SMSRoutable) any
}

// CallNotification renders a notification as either a TwiML URL string or
// a *CallMessage.
type CallNotification interface {
	ToCall(notifiable CallRoutable) any
}

// Keyed notifiables contribute notifiable_id to the notification context.
type Keyed interface {
	NotificationKey() any
}

// Typed notifications and notifiables override the Go type name used in
// the notification context.
type Typed interface {
	NotificationType() string
}

type SMSChannel struct {
	port core.OutboundPort
	name string
}

func NewSMSChannel(port core.OutboundPort, cfg core.Config) *SMSChannel {
	name := strings.TrimSpace(cfg.Notifications.ChannelName)
	if name == "" {
		name = core.DefaultSMSChannelName
	}
	return &SMSChannel{port: port, name: name}
}

func (c *SMSChannel) Name() string {
	return c.name
}

// Send goes through the cancellable SendMessage entry point, so pre-send
// hooks see notification traffic like any other message.
func (c *SMSChannel) Send(ctx context.Context, notifiable SMSRoutable, notification SMSNotification) (core.DeliveryResult, error) {
	if c == nil || c.port == nil {
		return core.DeliveryResult{}, core.NewConfigurationError("notifications: sms channel is not configured", nil)
	}
	if notifiable == nil || notification == nil {
		return core.DeliveryResult{}, core.NewBadInputError("notifications: notifiable and notification are required", nil)
	}
	to := strings.TrimSpace(notifiable.RouteSMS(notification))
	if to == "" {
		return core.DeliveryResult{}, nil
	}

	var message SMSMessage
	switch rendered := notification.ToSMS(notifiable).(type) {
	case string:
		message = SMSMessage{Content: rendered}
	case *SMSMessage:
		if rendered == nil {
			return core.DeliveryResult{}, core.NewBadInputError("notifications: nil sms message", nil)
		}
		message = *rendered
	case SMSMessage:
		message = rendered
	default:
		return core.DeliveryResult{}, core.NewBadInputError(
			"notifications: unsupported sms message",
			map[string]any{"type": fmt.Sprintf("%T", rendered)},
		)
	}

	opts := message.Options.Clone()
	opts.Metadata = withNotificationContext(opts.Metadata, notifiable, notification)
	return c.port.SendMessage(ctx, to, message.Content, opts)
}

type CallChannel struct {
	port core.OutboundPort
	name string
}

func NewCallChannel(port core.OutboundPort, cfg core.Config) *CallChannel {
	name := strings.TrimSpace(cfg.Notifications.CallChannelName)
	if name == "" {
		name = core.DefaultCallChannelName
	}
	return &CallChannel{port: port, name: name}
}

func (c *CallChannel) Name() string {
	return c.name
}

func (c *CallChannel) Send(ctx context.Context, notifiable CallRoutable, notification CallNotification) (core.DeliveryResult, error) {
	if c == nil || c.port == nil {
		return core.DeliveryResult{}, core.NewConfigurationError("notifications: call channel is not configured", nil)
	}
	if notifiable == nil || notification == nil {
		return core.DeliveryResult{}, core.NewBadInputError("notifications: notifiable and notification are required", nil)
	}
	to := strings.TrimSpace(notifiable.RouteCall(notification))
	if to == "" {
		return core.DeliveryResult{}, nil
	}

	var message CallMessage
	switch rendered := notification.ToCall(notifiable).(type) {
	case string:
		message = CallMessage{URL: rendered}
	case *CallMessage:
		if rendered == nil {
			return core.DeliveryResult{}, core.NewBadInputError("notifications: nil call message", nil)
		}
		message = *rendered
	case CallMessage:
		message = rendered
	default:
		return core.DeliveryResult{}, core.NewBadInputError(
			"notifications: unsupported call message",
			map[string]any{"type": fmt.Sprintf("%T", rendered)},
		)
	}

	opts := message.Options.Clone()
	opts.Metadata = withNotificationContext(opts.Metadata, notifiable, notification)
	return c.port.MakeCall(ctx, to, message.URL, opts)
}

func withNotificationContext(metadata map[string]any, notifiable any, notification any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var key any
	if keyed, ok := notifiable.(Keyed); ok {
		key = keyed.NotificationKey()
	}
	metadata[core.NotificationMetadataKey] = map[string]any{
		"type":          typeName(notification),
		"notifiable":    typeName(notifiable),
		"notifiable_id": key,
	}
	return metadata
}

func typeName(value any) string {
	if typed, ok := value.(Typed); ok {
		if name := strings.TrimSpace(typed.NotificationType()); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", value)
}
