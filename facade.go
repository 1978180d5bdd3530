package twilio

import (
	"fmt"

	twiliocommand "github.com/goliatone/go-twilio/command"
	"github.com/goliatone/go-twilio/core"
	twilioquery "github.com/goliatone/go-twilio/query"
)

type Commands struct {
	SendMessage *twiliocommand.SendMessageCommand
	MakeCall    *twiliocommand.MakeCallCommand
}

type Queries struct {
	GetDelivery    *twilioquery.GetDeliveryQuery
	ListDeliveries *twilioquery.ListDeliveriesQuery
}

// Facade groups the command and query handlers over one outbound port.
// Queries are nil unless a delivery log reader is configured.
type Facade struct {
	port     core.OutboundPort
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	deliveryReader core.DeliveryLogReader
}

func WithDeliveryLogReader(reader core.DeliveryLogReader) FacadeOption {
	return func(options *facadeOptions) {
		options.deliveryReader = reader
	}
}

func NewFacade(port core.OutboundPort, opts ...FacadeOption) (*Facade, error) {
	if port == nil {
		return nil, fmt.Errorf("twilio: outbound port is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.deliveryReader
	if reader == nil {
		if candidate, ok := port.(core.DeliveryLogReader); ok {
			reader = candidate
		}
	}

	facade := &Facade{port: port}
	facade.commands = Commands{
		SendMessage: twiliocommand.NewSendMessageCommand(port),
		MakeCall:    twiliocommand.NewMakeCallCommand(port),
	}
	if reader != nil {
		facade.queries = Queries{
			GetDelivery:    twilioquery.NewGetDeliveryQuery(reader),
			ListDeliveries: twilioquery.NewListDeliveriesQuery(reader),
		}
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Port() core.OutboundPort {
	if f == nil {
		return nil
	}
	return f.port
}
