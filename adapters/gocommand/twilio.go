package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-twilio/command"
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/query"
)

// Subscriptions collects dispatcher subscriptions so callers can tear the
// whole set down at once.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterTwilioCommands registers the send and call commands against port.
func RegisterTwilioCommands(
	adapter *RegistryAdapter,
	port core.OutboundPort,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if port == nil {
		return nil, fmt.Errorf("gocommand: outbound port is required")
	}
	var subscriptions Subscriptions
	send, err := RegisterAndSubscribe(adapter, command.NewSendMessageCommand(port), runnerOpts...)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, send)

	call, err := RegisterAndSubscribe(adapter, command.NewMakeCallCommand(port), runnerOpts...)
	if err != nil {
		subscriptions.Unsubscribe()
		return nil, err
	}
	return append(subscriptions, call), nil
}

// RegisterTwilioQueries registers the delivery log queries against reader.
func RegisterTwilioQueries(
	adapter *RegistryAdapter,
	reader core.DeliveryLogReader,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if reader == nil {
		return nil, fmt.Errorf("gocommand: delivery log reader is required")
	}
	var subscriptions Subscriptions
	get, err := RegisterAndSubscribeQuery(adapter, query.NewGetDeliveryQuery(reader), runnerOpts...)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, get)

	list, err := RegisterAndSubscribeQuery(adapter, query.NewListDeliveriesQuery(reader), runnerOpts...)
	if err != nil {
		subscriptions.Unsubscribe()
		return nil, err
	}
	return append(subscriptions, list), nil
}
