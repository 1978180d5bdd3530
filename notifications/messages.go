package notifications

import (
	"time"

	"github.com/goliatone/go-twilio/core"
)

// SMSMessage is the builder returned by SMS notifications.
type SMSMessage struct {
	Content string
	Options core.MessageOptions
}

func NewSMSMessage(content string) *SMSMessage {
	return &SMSMessage{Content: content}
}

func (m *SMSMessage) WithContent(content string) *SMSMessage {
	m.Content = content
	return m
}

func (m *SMSMessage) From(from string) *SMSMessage {
	m.Options.From = from
	return m
}

func (m *SMSMessage) MessagingService(sid string) *SMSMessage {
	m.Options.MessagingServiceSID = sid
	return m
}

func (m *SMSMessage) MediaURLs(urls ...string) *SMSMessage {
	m.Options.MediaURLs = append([]string(nil), urls...)
	return m
}

func (m *SMSMessage) StatusCallback(url string) *SMSMessage {
	m.Options.StatusCallback = url
	return m
}

func (m *SMSMessage) OnQueue(queue string) *SMSMessage {
	m.Options.Queue = queue
	return m
}

func (m *SMSMessage) Delay(delay time.Duration) *SMSMessage {
	m.Options.Delay = delay
	return m
}

func (m *SMSMessage) WithMetadata(key string, value any) *SMSMessage {
	if m.Options.Metadata == nil {
		m.Options.Metadata = map[string]any{}
	}
	m.Options.Metadata[key] = value
	return m
}

// CallMessage is the builder returned by call notifications. URL points at
// the TwiML document that drives the call.
type CallMessage struct {
	URL     string
	Options core.CallOptions
}

func NewCallMessage(url string) *CallMessage {
	return &CallMessage{URL: url}
}

func (m *CallMessage) WithURL(url string) *CallMessage {
	m.URL = url
	return m
}

func (m *CallMessage) From(from string) *CallMessage {
	m.Options.From = from
	return m
}

func (m *CallMessage) StatusCallback(url string) *CallMessage {
	m.Options.StatusCallback = url
	return m
}

func (m *CallMessage) StatusCallbackEvents(events ...string) *CallMessage {
	m.Options.StatusCallbackEvents = append([]string(nil), events...)
	return m
}

func (m *CallMessage) Record(record bool) *CallMessage {
	m.Options.Record = core.Bool(record)
	return m
}

func (m *CallMessage) Timeout(seconds int) *CallMessage {
	m.Options.Timeout = seconds
	return m
}

func (m *CallMessage) OnQueue(queue string) *CallMessage {
	m.Options.Queue = queue
	return m
}

func (m *CallMessage) Delay(delay time.Duration) *CallMessage {
	m.Options.Delay = delay
	return m
}

func (m *CallMessage) WithMetadata(key string, value any) *CallMessage {
	if m.Options.Metadata == nil {
		m.Options.Metadata = map[string]any{}
	}
	m.Options.Metadata[key] = value
	return m
}
