package twilio

import (
	"context"
	"testing"

	twiliocommand "github.com/goliatone/go-twilio/command"
	"github.com/goliatone/go-twilio/core"
	twilioquery "github.com/goliatone/go-twilio/query"
	"github.com/goliatone/go-twilio/twiliotest"
)

type stubFacadeReader struct {
	lastProviderID string
}

func (r *stubFacadeReader) GetByProviderID(_ context.Context, providerID string) (core.DeliveryLogEntry, error) {
	r.lastProviderID = providerID
	return core.DeliveryLogEntry{ProviderID: providerID, ProviderStatus: "delivered"}, nil
}

func (r *stubFacadeReader) List(context.Context, core.DeliveryLogFilter) (core.DeliveryLogPage, error) {
	return core.DeliveryLogPage{Total: 1}, nil
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(twiliotest.NewFake(), WithDeliveryLogReader(&stubFacadeReader{}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.SendMessage == nil || commands.MakeCall == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetDelivery == nil || queries.ListDeliveries == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	fake := twiliotest.NewFake()
	reader := &stubFacadeReader{}
	facade, err := NewFacade(fake, WithDeliveryLogReader(reader))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().SendMessage.Execute(context.Background(), twiliocommand.SendMessageMessage{
		To:   "+15551234567",
		Body: "hello",
	}); err != nil {
		t.Fatalf("execute send command: %v", err)
	}
	fake.AssertSentTo(t, "+15551234567")

	entry, err := facade.Queries().GetDelivery.Query(context.Background(), twilioquery.GetDeliveryMessage{ProviderID: "SM1"})
	if err != nil {
		t.Fatalf("query delivery: %v", err)
	}
	if entry.ProviderStatus != "delivered" || reader.lastProviderID != "SM1" {
		t.Fatalf("unexpected delivery query result: %#v", entry)
	}
}

func TestNewFacade_WithoutReaderLeavesQueriesUnset(t *testing.T) {
	facade, err := NewFacade(twiliotest.NewFake())
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Queries().GetDelivery != nil {
		t.Fatalf("expected no queries without a delivery log reader")
	}
}

func TestNewFacade_RequiresPort(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil port error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}
