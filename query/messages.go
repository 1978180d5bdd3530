package query

import (
	"strings"

	"github.com/goliatone/go-twilio/core"
)

const (
	TypeGetDelivery    = "twilio.query.delivery.get"
	TypeListDeliveries = "twilio.query.delivery.list"
)

type GetDeliveryMessage struct {
	ProviderID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider id is required")
	}
	return nil
}

type ListDeliveriesMessage struct {
	Filter core.DeliveryLogFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	switch m.Filter.Kind {
	case "", core.DeliveryKindMessage, core.DeliveryKindCall:
	default:
		return queryValidationError("kind", "unsupported delivery kind "+string(m.Filter.Kind))
	}
	return nil
}
