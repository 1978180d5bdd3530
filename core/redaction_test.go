package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":          "trace_1",
		"request_id":        "req_1",
		"message_sid":       "SM1",
		"account_sid":       "AC1",
		"auth_token":        "secret-token",
		"authorization":     "Basic abc",
		"idempotency_token": "tok_1",
		"nested":            map[string]any{"x_twilio_signature": "sig", "trace_id": "trace_nested"},
		"events":            []any{map[string]any{"api_key": "key_1"}, map[string]any{"call_sid": "CA1"}},
	})

	if redacted["trace_id"] != "trace_1" {
		t.Fatalf("expected trace_id to remain visible, got %#v", redacted["trace_id"])
	}
	if redacted["message_sid"] != "SM1" || redacted["account_sid"] != "AC1" {
		t.Fatalf("expected sid fields to remain visible, got %#v", redacted)
	}
	if redacted["idempotency_token"] != "tok_1" {
		t.Fatalf("expected idempotency token to remain visible, got %#v", redacted["idempotency_token"])
	}
	if redacted["auth_token"] != RedactedValue {
		t.Fatalf("expected auth_token to be redacted, got %#v", redacted["auth_token"])
	}
	if redacted["authorization"] != RedactedValue {
		t.Fatalf("expected authorization to be redacted, got %#v", redacted["authorization"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["x_twilio_signature"] != RedactedValue {
		t.Fatalf("expected nested signature to be redacted, got %#v", nested["x_twilio_signature"])
	}
	if nested["trace_id"] != "trace_nested" {
		t.Fatalf("expected nested trace_id to remain visible, got %#v", nested["trace_id"])
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 2 {
		t.Fatalf("expected redacted events slice, got %#v", redacted["events"])
	}
	if first := events[0].(map[string]any); first["api_key"] != RedactedValue {
		t.Fatalf("expected api_key in slice to be redacted, got %#v", first["api_key"])
	}
}

func TestRedactSensitiveMapNormalizesTwilioParamNames(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"AuthToken":          "tok",
		"X-Twilio-Signature": "sig",
		"MessageSid":         "SM1",
		"params":             map[string]string{"ApiKey": "key", "From": "+15550001111"},
	})
	if redacted["AuthToken"] != RedactedValue || redacted["X-Twilio-Signature"] != RedactedValue {
		t.Fatalf("expected credential params to be redacted, got %#v", redacted)
	}
	if redacted["MessageSid"] != "SM1" {
		t.Fatalf("expected MessageSid to remain visible, got %#v", redacted["MessageSid"])
	}
	params := redacted["params"].(map[string]string)
	if params["ApiKey"] != RedactedValue || params["From"] != "+15550001111" {
		t.Fatalf("expected string map to be redacted per key, got %#v", params)
	}
	if out := RedactSensitiveMap(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil map for nil input, got %#v", out)
	}
}
