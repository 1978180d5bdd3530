package gocommand

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-twilio/command"
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/query"
	"github.com/goliatone/go-twilio/twiliotest"
)

type memoryDeliveryLogReader struct {
	entries []core.DeliveryLogEntry
}

func (r *memoryDeliveryLogReader) GetByProviderID(_ context.Context, providerID string) (core.DeliveryLogEntry, error) {
	for _, entry := range r.entries {
		if entry.ProviderID == providerID {
			return entry, nil
		}
	}
	return core.DeliveryLogEntry{}, core.NewBadInputError("unknown delivery", nil)
}

func (r *memoryDeliveryLogReader) List(context.Context, core.DeliveryLogFilter) (core.DeliveryLogPage, error) {
	return core.DeliveryLogPage{Items: append([]core.DeliveryLogEntry(nil), r.entries...), Total: len(r.entries)}, nil
}

func TestRegisterTwilioCommands_DispatchReachesOutboundPort(t *testing.T) {
	fake := twiliotest.NewFake()
	reader := &memoryDeliveryLogReader{}
	fake.Events().OnSent(core.DeliveryHookFunc(func(_ context.Context, event core.DeliveryEvent) error {
		reader.entries = append(reader.entries, core.NewDeliveryLogEntry(event))
		return nil
	}))

	adapter := NewRegistryAdapter(gocmd.NewRegistry())
	commands, err := RegisterTwilioCommands(adapter, fake)
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}
	defer commands.Unsubscribe()
	queries, err := RegisterTwilioQueries(adapter, reader)
	if err != nil {
		t.Fatalf("register queries: %v", err)
	}
	defer queries.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), command.SendMessageMessage{To: "+15551234567", Body: "hi"}); err != nil {
		t.Fatalf("dispatch send: %v", err)
	}
	if err := Dispatch(context.Background(), command.MakeCallMessage{To: "+15557654321", URL: "https://example.com/twiml"}); err != nil {
		t.Fatalf("dispatch call: %v", err)
	}
	fake.AssertSentCount(t, 1)
	fake.AssertCallCount(t, 1)

	entry, err := Query[query.GetDeliveryMessage, core.DeliveryLogEntry](
		context.Background(),
		query.GetDeliveryMessage{ProviderID: "FAKE_SID_0"},
	)
	if err != nil {
		t.Fatalf("query delivery: %v", err)
	}
	if entry.To != "+15551234567" {
		t.Fatalf("unexpected delivery entry: %#v", entry)
	}
}

func TestRegisterTwilioCommands_RequiresPort(t *testing.T) {
	if _, err := RegisterTwilioCommands(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing port error")
	}
	if _, err := RegisterTwilioQueries(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected missing reader error")
	}
}
