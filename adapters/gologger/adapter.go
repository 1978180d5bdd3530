package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/webhooks"
)

// Logger names resolved by the dispatcher, the webhook receiver, and the
// queue worker.
const (
	LoggerService  = "twilio"
	LoggerWebhooks = "twilio.webhooks"
	LoggerWorker   = "twilio.worker"
)

// Resolve picks the named logger from provider, then logger, then a nop
// logger. An empty name resolves the service logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if name == "" {
		name = LoggerService
	}
	resolvedProvider, resolvedLogger := glog.Resolve(name, provider, logger)
	return resolvedProvider, glog.Ensure(resolvedLogger)
}

// ServiceOptions wires the resolved service logger into core.NewService.
func ServiceOptions(provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(LoggerService, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}

func ReceiverOptions(provider glog.LoggerProvider, logger glog.Logger) []webhooks.ReceiverOption {
	resolvedProvider, resolvedLogger := Resolve(LoggerWebhooks, provider, logger)
	return []webhooks.ReceiverOption{
		webhooks.WithLoggerProvider(resolvedProvider),
		webhooks.WithLogger(resolvedLogger),
	}
}

// WorkerLogger resolves the logger assigned to core.QueueWorker.Logger.
func WorkerLogger(provider glog.LoggerProvider, logger glog.Logger) core.Logger {
	_, resolved := Resolve(LoggerWorker, provider, logger)
	return resolved
}

// ToJobProvider adapts a glog provider for go-job workers. Nil stays nil.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves name and returns both the glog pair and the
// go-job bridges built from it.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	if name == "" {
		name = LoggerWorker
	}
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
