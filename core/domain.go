package core

import (
	"strings"
	"time"
)

type DeliveryKind string

const (
	DeliveryKindMessage DeliveryKind = "message"
	DeliveryKindCall    DeliveryKind = "call"
)

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusInitiated DeliveryStatus = "initiated"
	DeliveryStatusQueued    DeliveryStatus = "queued"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// MessageOptions are the per-call overrides accepted by the message paths.
// Metadata is carried through events and deferred jobs untouched, except for
// the statusCallback key which is read as a fallback callback URL.
type MessageOptions struct {
	From                string         `json:"from,omitempty"`
	MessagingServiceSID string         `json:"messaging_service_sid,omitempty"`
	MediaURLs           []string       `json:"media_urls,omitempty"`
	StatusCallback      string         `json:"status_callback,omitempty"`
	Queue               string         `json:"queue,omitempty"`
	Delay               time.Duration  `json:"delay,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// CallOptions are the per-call overrides accepted by the call paths.
// A nil Record leaves recording to the provider default.
type CallOptions struct {
	From                 string         `json:"from,omitempty"`
	StatusCallback       string         `json:"status_callback,omitempty"`
	StatusCallbackEvents []string       `json:"status_callback_events,omitempty"`
	Record               *bool          `json:"record,omitempty"`
	Timeout              int            `json:"timeout,omitempty"`
	Queue                string         `json:"queue,omitempty"`
	Delay                time.Duration  `json:"delay,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// DeliveryResult is the single result shape returned by every message and
// call path, immediate or queued.
type DeliveryResult struct {
	Kind           DeliveryKind   `json:"kind"`
	Status         DeliveryStatus `json:"status"`
	To             string         `json:"to"`
	ProviderID     string         `json:"provider_id,omitempty"`
	ProviderStatus string         `json:"provider_status,omitempty"`
	SegmentsCount  int            `json:"segments_count,omitempty"`
	Queue          string         `json:"queue,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

func (r DeliveryResult) Cancelled() bool {
	return r.Status == DeliveryStatusCancelled
}

func (o MessageOptions) Clone() MessageOptions {
	out := o
	out.MediaURLs = cloneStrings(o.MediaURLs)
	out.Metadata = cloneMetadata(o.Metadata)
	return out
}

// ResolveStatusCallback prefers the explicit option over metadata.
func (o MessageOptions) ResolveStatusCallback() string {
	if callback := strings.TrimSpace(o.StatusCallback); callback != "" {
		return callback
	}
	if o.Metadata == nil {
		return ""
	}
	if callback, ok := o.Metadata[StatusCallbackMetadataKey].(string); ok {
		return strings.TrimSpace(callback)
	}
	return ""
}

func (o CallOptions) Clone() CallOptions {
	out := o
	out.StatusCallbackEvents = cloneStrings(o.StatusCallbackEvents)
	out.Metadata = cloneMetadata(o.Metadata)
	if o.Record != nil {
		record := *o.Record
		out.Record = &record
	}
	return out
}

// Bool returns a pointer for optional boolean fields such as CallOptions.Record.
func Bool(value bool) *bool {
	return &value
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
