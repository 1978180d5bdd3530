package core

import (
	"context"
	"time"
)

// DeliveryLogEntry is one audited outbound attempt. Queued and executed
// attempts of the same unit produce separate entries; status webhooks update
// the entry that carries the provider id.
type DeliveryLogEntry struct {
	ID             string
	Kind           DeliveryKind
	To             string
	Body           string
	URL            string
	ProviderID     string
	Status         DeliveryStatus
	ProviderStatus string
	Queue          string
	SegmentsCount  int
	ErrorCode      string
	ErrorMessage   string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DeliveryLogFilter struct {
	Kind    DeliveryKind
	To      string
	Status  DeliveryStatus
	Page    int
	PerPage int
}

type DeliveryLogPage struct {
	Items   []DeliveryLogEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

// DeliveryStatusUpdate is a provider status transition reported by a
// status callback webhook.
type DeliveryStatusUpdate struct {
	ProviderID     string
	ProviderStatus string
	ErrorCode      string
	ErrorMessage   string
	OccurredAt     time.Time
}

type DeliveryLogReader interface {
	GetByProviderID(ctx context.Context, providerID string) (DeliveryLogEntry, error)
	List(ctx context.Context, filter DeliveryLogFilter) (DeliveryLogPage, error)
}

// NewDeliveryLogEntry maps a sent or queued event to a log entry.
func NewDeliveryLogEntry(event DeliveryEvent) DeliveryLogEntry {
	entry := DeliveryLogEntry{
		Kind:           event.Kind,
		To:             event.To,
		Body:           event.Body,
		URL:            event.URL,
		ProviderID:     event.Result.ProviderID,
		Status:         event.Result.Status,
		ProviderStatus: event.Result.ProviderStatus,
		Queue:          event.Queue,
		SegmentsCount:  event.Result.SegmentsCount,
		CreatedAt:      event.OccurredAt,
		UpdatedAt:      event.OccurredAt,
	}
	if entry.Kind == "" {
		entry.Kind = event.Result.Kind
	}
	if entry.Queue == "" {
		entry.Queue = event.Result.Queue
	}
	switch entry.Kind {
	case DeliveryKindCall:
		entry.Metadata = cloneMetadata(event.Call.Metadata)
	default:
		entry.Metadata = cloneMetadata(event.Message.Metadata)
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return entry
}
