package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-twilio/core"
)

type SendMessageCommand struct {
	port core.OutboundPort
}

func NewSendMessageCommand(port core.OutboundPort) *SendMessageCommand {
	return &SendMessageCommand{port: port}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.port == nil {
		return commandDependencyError("command: outbound port is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	var (
		out core.DeliveryResult
		err error
	)
	switch msg.Mode {
	case DispatchNow:
		out, err = c.port.SendMessageNow(ctx, msg.To, msg.Body, msg.Options)
	case DispatchQueue:
		out, err = c.port.QueueMessage(ctx, msg.To, msg.Body, msg.Options)
	default:
		out, err = c.port.SendMessage(ctx, msg.To, msg.Body, msg.Options)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MakeCallCommand struct {
	port core.OutboundPort
}

func NewMakeCallCommand(port core.OutboundPort) *MakeCallCommand {
	return &MakeCallCommand{port: port}
}

func (c *MakeCallCommand) Execute(ctx context.Context, msg MakeCallMessage) error {
	if c == nil || c.port == nil {
		return commandDependencyError("command: outbound port is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	var (
		out core.DeliveryResult
		err error
	)
	switch msg.Mode {
	case DispatchNow:
		out, err = c.port.MakeCallNow(ctx, msg.To, msg.URL, msg.Options)
	case DispatchQueue:
		out, err = c.port.QueueCall(ctx, msg.To, msg.URL, msg.Options)
	default:
		out, err = c.port.MakeCall(ctx, msg.To, msg.URL, msg.Options)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
