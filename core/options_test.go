package core

import (
	"context"
	"testing"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Logger() == nil {
		t.Fatalf("expected default logger")
	}
	if svc.LoggerProvider() == nil {
		t.Fatalf("expected default logger provider")
	}
	if svc.Events() == nil {
		t.Fatalf("expected default event bus")
	}
	cfg := svc.Config()
	if cfg.Webhook.Path != DefaultWebhookPath {
		t.Fatalf("expected default webhook path, got %q", cfg.Webhook.Path)
	}
	if !cfg.Webhook.ValidateSignature || !cfg.Queue.Enabled {
		t.Fatalf("expected signature validation and queueing enabled by default, got %#v", cfg)
	}
	if cfg.QueueName() != DefaultQueueName {
		t.Fatalf("expected default queue name, got %q", cfg.QueueName())
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	logger := newCaptureLogger()
	events := NewEventBus()
	optionsResolver := &fixedOptionsResolver{cfg: Config{
		From:    "+15557777777",
		Webhook: WebhookConfig{Path: "/resolved"},
	}}

	svc, err := NewService(DefaultConfig(),
		WithLogger(logger),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithConfigProvider(&fixedConfigProvider{cfg: Config{From: "+15558888888"}}),
		WithOptionsResolver(optionsResolver),
		WithEventBus(events),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Logger() != Logger(logger) {
		t.Fatalf("expected custom logger override")
	}
	if resolved := svc.LoggerProvider().GetLogger("twilio.override"); resolved != Logger(logger) {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if svc.Events() != events {
		t.Fatalf("expected custom event bus override")
	}
	if got := svc.Config().From; got != "+15557777777" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"from":                  "+15551111111",
		"messaging_service_sid": "MG_config",
		"queue": map[string]any{
			"name": "from-config",
		},
	}})

	runtime := DefaultConfig()
	runtime.From = "+15552222222"
	svc, err := NewService(runtime, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.From != "+15552222222" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.From)
	}
	if cfg.MessagingServiceSID != "MG_config" {
		t.Fatalf("expected config layer messaging service, got %q", cfg.MessagingServiceSID)
	}
	if cfg.QueueName() != "from-config" {
		t.Fatalf("expected config layer queue name, got %q", cfg.QueueName())
	}
	if !cfg.Queue.Enabled {
		t.Fatalf("expected default queue enabled to survive layering")
	}
}

func TestNewService_RuntimeDisablesDefaultTrueFlags(t *testing.T) {
	runtime := DefaultConfig()
	runtime.Queue.Enabled = false
	runtime.Webhook.ValidateSignature = false

	svc, err := NewService(runtime)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.Queue.Enabled || cfg.Webhook.ValidateSignature {
		t.Fatalf("expected runtime false values to apply, got %#v", cfg)
	}
}

func TestNewService_InvalidWebhookPath(t *testing.T) {
	runtime := DefaultConfig()
	runtime.Webhook.Path = "webhooks"
	if _, err := NewService(runtime); err == nil {
		t.Fatalf("expected invalid webhook path error")
	}
}

func TestNewService_ProviderFactoryReceivesResolvedConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"account_sid": "AC_config",
	}})
	var seen Config
	stub := &stubProvider{}
	svc, err := NewService(immediateConfig(),
		WithConfigProvider(provider),
		WithProviderFactory(func(cfg Config) (Provider, error) {
			seen = cfg
			return stub, nil
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if seen.AuthToken != "secret" {
		t.Fatalf("expected factory to see runtime auth token, got %#v", seen)
	}
	if _, err := svc.SendMessageNow(context.Background(), "+15551234567", "hi", MessageOptions{}); err != nil {
		t.Fatalf("send through factory provider: %v", err)
	}
	if stub.messageCount() != 1 {
		t.Fatalf("expected factory provider to be used")
	}
}
