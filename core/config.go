package core

import (
	"fmt"
	"strings"
)

const (
	DefaultWebhookPath        = "/webhooks/twilio"
	DefaultQueueName          = "default"
	DefaultSMSChannelName     = "twilioSms"
	DefaultCallChannelName    = "twilioCall"
	SignatureHeader           = "X-Twilio-Signature"
	IdempotencyTokenHeader    = "I-Twilio-Idempotency-Token"
	StatusCallbackMetadataKey = "statusCallback"
	NotificationMetadataKey   = "_notification"
)

type WebhookConfig struct {
	Path              string `koanf:"path" mapstructure:"path"`
	ValidateSignature bool   `koanf:"validate_signature" mapstructure:"validate_signature"`
}

type QueueConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled"`
	Name    string `koanf:"name" mapstructure:"name"`
}

type NotificationsConfig struct {
	ChannelName     string `koanf:"channel_name" mapstructure:"channel_name"`
	CallChannelName string `koanf:"call_channel_name" mapstructure:"call_channel_name"`
}

// Config is the explicit configuration surface shared by the dispatcher,
// the webhook receiver and the notification channels. Credentials are not
// required at load time; missing values surface as configuration errors at
// the point of use.
type Config struct {
	AccountSID          string              `koanf:"account_sid" mapstructure:"account_sid"`
	AuthToken           string              `koanf:"auth_token" mapstructure:"auth_token"`
	From                string              `koanf:"from" mapstructure:"from"`
	MessagingServiceSID string              `koanf:"messaging_service_sid" mapstructure:"messaging_service_sid"`
	Webhook             WebhookConfig       `koanf:"webhook" mapstructure:"webhook"`
	Queue               QueueConfig         `koanf:"queue" mapstructure:"queue"`
	Debug               bool                `koanf:"debug" mapstructure:"debug"`
	Notifications       NotificationsConfig `koanf:"notifications" mapstructure:"notifications"`
}

func DefaultConfig() Config {
	return Config{
		Webhook: WebhookConfig{
			Path:              DefaultWebhookPath,
			ValidateSignature: true,
		},
		Queue: QueueConfig{
			Enabled: true,
			Name:    DefaultQueueName,
		},
		Notifications: NotificationsConfig{
			ChannelName:     DefaultSMSChannelName,
			CallChannelName: DefaultCallChannelName,
		},
	}
}

func (c Config) Validate() error {
	path := strings.TrimSpace(c.Webhook.Path)
	if path == "" {
		return fmt.Errorf("core: webhook.path is required")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("core: webhook.path must start with /")
	}
	if c.Queue.Enabled && strings.TrimSpace(c.Queue.Name) == "" {
		return fmt.Errorf("core: queue.name is required when queueing is enabled")
	}
	return nil
}

// QueueName returns the configured default queue, falling back to "default".
func (c Config) QueueName() string {
	if name := strings.TrimSpace(c.Queue.Name); name != "" {
		return name
	}
	return DefaultQueueName
}
