package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service is the provider backed OutboundPort. Messages and calls are sent
// immediately or wrapped in deferred jobs depending on Config.Queue.Enabled.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	provider        Provider
	enqueuer        JobEnqueuer
	events          *EventBus
	now             func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("twilio", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("twilio"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.events == nil {
		builder.events = NewEventBus()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, MapError(err)
	}
	if builder.provider == nil && builder.providerFactory != nil {
		built, err := builder.providerFactory(finalConfig)
		if err != nil {
			return nil, MapError(err)
		}
		builder.provider = built
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		provider:        builder.provider,
		enqueuer:        builder.enqueuer,
		events:          builder.events,
		now:             builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

// Events exposes the hook registry used by this service.
func (s *Service) Events() *EventBus {
	if s == nil {
		return nil
	}
	return s.events
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) LoggerProvider() LoggerProvider {
	if s == nil {
		return nil
	}
	return s.loggerProvider
}

// SendMessage routes to QueueMessage or SendMessageNow.
func (s *Service) SendMessage(ctx context.Context, to string, body string, opts MessageOptions) (DeliveryResult, error) {
	if s != nil && s.config.Queue.Enabled {
		return s.QueueMessage(ctx, to, body, opts)
	}
	return s.SendMessageNow(ctx, to, body, opts)
}

// MakeCall routes to QueueCall or MakeCallNow.
func (s *Service) MakeCall(ctx context.Context, to string, url string, opts CallOptions) (DeliveryResult, error) {
	if s != nil && s.config.Queue.Enabled {
		return s.QueueCall(ctx, to, url, opts)
	}
	return s.MakeCallNow(ctx, to, url, opts)
}

func (s *Service) runSendingHooks(ctx context.Context, event *SendingEvent) error {
	if s == nil || s.events == nil {
		return nil
	}
	return s.events.DispatchSending(ctx, event)
}

func (s *Service) notifySent(ctx context.Context, event DeliveryEvent) {
	if s == nil || s.events == nil {
		return
	}
	event.OccurredAt = s.timestamp()
	if err := s.events.DispatchSent(ctx, event); err != nil {
		s.logError(ctx, "twilio sent hooks failed", map[string]any{
			"kind":  string(event.Kind),
			"to":    event.To,
			"error": err.Error(),
		})
	}
}

func (s *Service) notifyQueued(ctx context.Context, event DeliveryEvent) {
	if s == nil || s.events == nil {
		return
	}
	event.OccurredAt = s.timestamp()
	if err := s.events.DispatchQueued(ctx, event); err != nil {
		s.logError(ctx, "twilio queued hooks failed", map[string]any{
			"kind":  string(event.Kind),
			"to":    event.To,
			"queue": event.Queue,
			"error": err.Error(),
		})
	}
}

func (s *Service) timestamp() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) requireProvider() (Provider, error) {
	if s == nil || s.provider == nil {
		return nil, NewConfigurationError("core: twilio provider is not configured", nil)
	}
	return s.provider, nil
}

func validateRecipient(to string) error {
	if strings.TrimSpace(to) == "" {
		return NewBadInputError("core: recipient is required", nil)
	}
	return nil
}
