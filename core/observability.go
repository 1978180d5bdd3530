package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// NopMetricsRecorder discards counters and histograms.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelError
)

// observeOperation emits twilio.<operation>.total and
// twilio.<operation>.duration_ms for every outbound operation. The outcome is
// logged only in debug mode.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	elapsed := s.timestamp().Sub(startedAt)

	tags := map[string]string{"operation": operation, "status": outcome}
	for _, key := range []string{"kind", "queue"} {
		if value, ok := fields[key]; ok && value != nil {
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				tags[key] = text
			}
		}
	}
	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, "twilio."+operation+".total", 1, cloneTags(tags))
		s.metricsRecorder.ObserveHistogram(ctx, "twilio."+operation+".duration_ms", float64(elapsed.Milliseconds()), cloneTags(tags))
	}

	if !s.config.Debug {
		return
	}
	logged := cloneFields(fields)
	logged["event_type"] = operation
	logged["status"] = outcome
	logged["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		logged["error"] = err.Error()
		s.logError(ctx, operation+" failed", logged)
		return
	}
	s.emit(ctx, levelDebug, operation+" succeeded", logged)
}

// infoIfDebug logs at info level, gated on Config.Debug.
func (s *Service) infoIfDebug(ctx context.Context, message string, fields map[string]any) {
	if s == nil || !s.config.Debug {
		return
	}
	s.emit(ctx, levelInfo, message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.emit(ctx, levelError, message, fields)
}

func (s *Service) emit(ctx context.Context, level logLevel, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	fields = RedactSensitiveMap(fields)
	if withFields, ok := logger.(FieldsLogger); ok {
		logger = withFields.WithFields(cloneFields(fields))
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelDebug:
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
