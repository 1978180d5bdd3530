package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-twilio/core"
)

var (
	_ gocmd.Querier[GetDeliveryMessage, core.DeliveryLogEntry]   = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[ListDeliveriesMessage, core.DeliveryLogPage] = (*ListDeliveriesQuery)(nil)
)
