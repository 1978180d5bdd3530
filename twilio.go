package twilio

import (
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/webhooks"
)

type Config = core.Config
type WebhookConfig = core.WebhookConfig
type QueueConfig = core.QueueConfig

type Option = core.Option

type Service = core.Service
type OutboundPort = core.OutboundPort
type Provider = core.Provider

type MessageOptions = core.MessageOptions
type CallOptions = core.CallOptions
type DeliveryResult = core.DeliveryResult

type EventBus = core.EventBus
type SendingEvent = core.SendingEvent
type DeliveryEvent = core.DeliveryEvent

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithProvider        = core.WithProvider
	WithProviderFactory = core.WithProviderFactory
	WithEnqueuer        = core.WithEnqueuer
	WithEventBus        = core.WithEventBus
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a dispatcher with no provider attached unless one is
// passed through opts.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// New builds a dispatcher backed by the Twilio REST API. Credentials are read
// from the resolved config, so layered config sources apply.
func New(cfg Config, opts ...Option) (*Service, error) {
	base := []Option{WithProviderFactory(TwilioProviderFactory(nil))}
	return core.NewService(cfg, append(base, opts...)...)
}

// NewReceiver builds the webhook endpoint for the service's config.
func NewReceiver(svc *Service, opts ...webhooks.ReceiverOption) *webhooks.Receiver {
	cfg := core.DefaultConfig()
	if svc != nil {
		cfg = svc.Config()
		opts = append([]webhooks.ReceiverOption{webhooks.WithLoggerProvider(svc.LoggerProvider())}, opts...)
	}
	return webhooks.NewReceiver(cfg, opts...)
}
