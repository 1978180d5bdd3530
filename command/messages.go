package command

import (
	"strings"

	"github.com/goliatone/go-twilio/core"
)

const (
	TypeSendMessage = "twilio.command.message.send"
	TypeMakeCall    = "twilio.command.call.create"
)

// DispatchMode selects which OutboundPort path a command takes.
type DispatchMode string

const (
	// DispatchDefault follows Config.Queue.Enabled.
	DispatchDefault DispatchMode = ""
	DispatchNow     DispatchMode = "now"
	DispatchQueue   DispatchMode = "queue"
)

func (m DispatchMode) valid() bool {
	switch m {
	case DispatchDefault, DispatchNow, DispatchQueue:
		return true
	default:
		return false
	}
}

type SendMessageMessage struct {
	To      string
	Body    string
	Options core.MessageOptions
	Mode    DispatchMode
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return commandValidationError("to", "recipient is required")
	}
	if !m.Mode.valid() {
		return commandValidationError("mode", "unsupported dispatch mode "+string(m.Mode))
	}
	if m.Options.Delay < 0 {
		return commandValidationError("options.delay", "delay must not be negative")
	}
	return nil
}

type MakeCallMessage struct {
	To      string
	URL     string
	Options core.CallOptions
	Mode    DispatchMode
}

func (MakeCallMessage) Type() string { return TypeMakeCall }

func (m MakeCallMessage) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return commandValidationError("to", "recipient is required")
	}
	if strings.TrimSpace(m.URL) == "" {
		return commandValidationError("url", "call instructions url is required")
	}
	if !m.Mode.valid() {
		return commandValidationError("mode", "unsupported dispatch mode "+string(m.Mode))
	}
	if m.Options.Timeout < 0 {
		return commandValidationError("options.timeout", "timeout must not be negative")
	}
	return nil
}
