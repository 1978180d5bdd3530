package query

import (
	"context"

	"github.com/goliatone/go-twilio/core"
)

type GetDeliveryQuery struct {
	reader core.DeliveryLogReader
}

func NewGetDeliveryQuery(reader core.DeliveryLogReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.DeliveryLogEntry, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryLogEntry{}, queryDependencyError("query: delivery log reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DeliveryLogEntry{}, err
	}
	return q.reader.GetByProviderID(ctx, msg.ProviderID)
}

type ListDeliveriesQuery struct {
	reader core.DeliveryLogReader
}

func NewListDeliveriesQuery(reader core.DeliveryLogReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) (core.DeliveryLogPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryLogPage{}, queryDependencyError("query: delivery log reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.DeliveryLogPage{}, err
	}
	return q.reader.List(ctx, msg.Filter)
}
