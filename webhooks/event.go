package webhooks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	TypeVoiceInbound      = "voice-inbound"
	TypeVoiceStatus       = "voice-status"
	TypeMessageInboundSMS = "message-inbound-sms"
	TypeMessageInboundMMS = "message-inbound-mms"
	TypeMessageGeneric    = "message-generic"
	TypeNone              = ""

	// MessageStatusPrefix is followed by the lowercased MessageStatus value.
	MessageStatusPrefix = "message-status-"
)

const (
	FieldCallSID       = "CallSid"
	FieldCallStatus    = "CallStatus"
	FieldMessageSID    = "MessageSid"
	FieldSmsSID        = "SmsSid"
	FieldMessageStatus = "MessageStatus"
	FieldBody          = "Body"
	FieldNumMedia      = "NumMedia"
	FieldFrom          = "From"
	FieldTo            = "To"
	FieldAccountSID    = "AccountSid"
	FieldMediaURL      = "MediaUrl"
)

// Payload is the decoded webhook body.
type Payload map[string]any

func (p Payload) has(key string) bool {
	if p == nil {
		return false
	}
	value, ok := p[key]
	return ok && value != nil
}

// Field returns the string form of key, or "" when it is absent.
func (p Payload) Field(key string) string {
	if !p.has(key) {
		return ""
	}
	switch value := p[key].(type) {
	case string:
		return value
	case []string:
		if len(value) == 0 {
			return ""
		}
		return value[0]
	default:
		return fmt.Sprint(value)
	}
}

func (p Payload) clone() Payload {
	out := make(Payload, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}

// Classify derives the event type of a payload. It is pure; the first
// matching rule wins and TypeNone means the source is unknown.
func Classify(payload Payload) string {
	if payload.has(FieldCallSID) {
		if !payload.has(FieldCallStatus) {
			return TypeVoiceInbound
		}
		switch strings.ToLower(strings.TrimSpace(payload.Field(FieldCallStatus))) {
		case "queued", "ringing", "in-progress":
			return TypeVoiceInbound
		default:
			return TypeVoiceStatus
		}
	}

	if payload.has(FieldMessageSID) || payload.has(FieldSmsSID) {
		if payload.has(FieldMessageStatus) {
			return MessageStatusPrefix + strings.ToLower(strings.TrimSpace(payload.Field(FieldMessageStatus)))
		}
		if payload.has(FieldBody) {
			if numMedia(payload) > 0 {
				return TypeMessageInboundMMS
			}
			return TypeMessageInboundSMS
		}
		return TypeMessageGeneric
	}

	return TypeNone
}

func numMedia(payload Payload) int {
	if !payload.has(FieldNumMedia) {
		return 0
	}
	switch value := payload[FieldNumMedia].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	count, err := strconv.Atoi(strings.TrimSpace(payload.Field(FieldNumMedia)))
	if err != nil {
		return 0
	}
	return count
}

// Event is a received webhook. Type is fixed when the event is built.
type Event struct {
	Payload Payload
	Type    string
}

// NewEvent copies payload and classifies it unless an explicit type is
// given.
func NewEvent(payload Payload, eventType string) Event {
	copied := payload.clone()
	if strings.TrimSpace(eventType) == "" {
		eventType = Classify(copied)
	}
	return Event{Payload: copied, Type: eventType}
}

func (e Event) IsInboundMessage() bool {
	return e.Type == TypeMessageInboundSMS || e.Type == TypeMessageInboundMMS
}

func (e Event) IsMessageStatusUpdate() bool {
	return strings.HasPrefix(e.Type, MessageStatusPrefix)
}

func (e Event) IsVoiceStatusUpdate() bool {
	return e.Type == TypeVoiceStatus
}

func (e Event) IsStatusUpdate() bool {
	return e.IsMessageStatusUpdate() || e.IsVoiceStatusUpdate()
}

func (e Event) IsInboundSMS() bool { return e.Type == TypeMessageInboundSMS }

func (e Event) IsInboundMMS() bool { return e.Type == TypeMessageInboundMMS }

func (e Event) IsInboundVoiceCall() bool { return e.Type == TypeVoiceInbound }

func (e Event) IsVoiceWebhook() bool {
	return e.Type == TypeVoiceInbound || e.Type == TypeVoiceStatus
}

func (e Event) IsMessageWebhook() bool {
	return strings.HasPrefix(e.Type, "message-")
}

// StatusType returns the lowercased message or call status for status
// updates and "" for everything else.
func (e Event) StatusType() string {
	switch {
	case e.IsMessageStatusUpdate():
		return strings.ToLower(strings.TrimSpace(e.Payload.Field(FieldMessageStatus)))
	case e.IsVoiceStatusUpdate():
		return strings.ToLower(strings.TrimSpace(e.Payload.Field(FieldCallStatus)))
	default:
		return ""
	}
}

func (e Event) MessageSID() string {
	if sid := e.Payload.Field(FieldMessageSID); sid != "" {
		return sid
	}
	return e.Payload.Field(FieldSmsSID)
}

func (e Event) CallSID() string { return e.Payload.Field(FieldCallSID) }

func (e Event) From() string { return e.Payload.Field(FieldFrom) }

func (e Event) To() string { return e.Payload.Field(FieldTo) }

func (e Event) Body() string { return e.Payload.Field(FieldBody) }

// MediaURLs returns the MediaUrl0..N fields in index order.
func (e Event) MediaURLs() []string {
	type indexed struct {
		index int
		url   string
	}
	items := []indexed{}
	for key := range e.Payload {
		if !strings.HasPrefix(key, FieldMediaURL) {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(key, FieldMediaURL))
		if err != nil {
			continue
		}
		if url := strings.TrimSpace(e.Payload.Field(key)); url != "" {
			items = append(items, indexed{index: index, url: url})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.url)
	}
	return out
}
