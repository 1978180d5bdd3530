package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-twilio/core"
)

func testConfig(validate bool) core.Config {
	cfg := core.DefaultConfig()
	cfg.AuthToken = testAuthToken
	cfg.Webhook.ValidateSignature = validate
	return cfg
}

func formBody(params map[string]string) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values.Encode()
}

func signedRequest(params map[string]string, token string) Request {
	return Request{
		Method:      http.MethodPost,
		URL:         testURL,
		Headers:     map[string]string{core.SignatureHeader: ComputeSignature(token, testURL, params)},
		Body:        []byte(formBody(params)),
		ContentType: "application/x-www-form-urlencoded",
	}
}

func decodeResponse(t *testing.T, response *Response) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(response.Body, &out); err != nil {
		t.Fatalf("decode response body %q: %v", string(response.Body), err)
	}
	return out
}

func TestReceiver_DefaultAcceptedResponse(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	var received []Event
	receiver.SubscribeFunc(func(_ context.Context, event Event) (*Response, error) {
		received = append(received, event)
		return nil, nil
	})

	params := map[string]string{"MessageSid": "SM1", "Body": "hi", "NumMedia": "0"}
	response := receiver.Receive(context.Background(), signedRequest(params, testAuthToken))
	if response.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", response.StatusCode)
	}
	body := decodeResponse(t, response)
	if body["success"] != true || body["message"] != "Webhook received" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if len(received) != 1 || received[0].Type != TypeMessageInboundSMS {
		t.Fatalf("expected one classified event, got %#v", received)
	}
}

func TestReceiver_MissingSignatureHeader(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	called := false
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		called = true
		return nil, nil
	})
	req := signedRequest(map[string]string{"MessageSid": "SM1"}, testAuthToken)
	req.Headers = map[string]string{}

	response := receiver.Receive(context.Background(), req)
	if response.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", response.StatusCode)
	}
	if body := decodeResponse(t, response); body["message"] != "Missing signature header" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if called {
		t.Fatalf("expected no subscriber call")
	}
}

func TestReceiver_InvalidSignature(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	called := false
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		called = true
		return nil, nil
	})

	response := receiver.Receive(context.Background(), signedRequest(map[string]string{"MessageSid": "SM1"}, "wrong-token"))
	if response.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", response.StatusCode)
	}
	if body := decodeResponse(t, response); body["message"] != "Invalid signature" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if called {
		t.Fatalf("expected no subscriber call")
	}
}

func TestReceiver_MissingAuthTokenIsServerError(t *testing.T) {
	cfg := testConfig(true)
	cfg.AuthToken = ""
	receiver := NewReceiver(cfg)

	req := signedRequest(map[string]string{"MessageSid": "SM1"}, testAuthToken)
	response := receiver.Receive(context.Background(), req)
	if response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.StatusCode)
	}
	if strings.Contains(string(response.Body), testAuthToken) {
		t.Fatalf("expected response not to leak configuration")
	}
}

func TestReceiver_MalformedBodyIsAuthenticatedFirst(t *testing.T) {
	forged := func() Request {
		return Request{
			Method:      http.MethodPost,
			URL:         testURL,
			Headers:     map[string]string{core.SignatureHeader: "forged"},
			Body:        []byte("Body=%zz"),
			ContentType: "application/x-www-form-urlencoded",
		}
	}

	receiver := NewReceiver(testConfig(true))
	called := false
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		called = true
		return nil, nil
	})
	response := receiver.Receive(context.Background(), forged())
	if response.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for forged signature with malformed body, got %d", response.StatusCode)
	}
	if body := decodeResponse(t, response); body["message"] != "Invalid signature" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if called {
		t.Fatalf("expected no subscriber call")
	}

	cfg := testConfig(true)
	cfg.AuthToken = ""
	response = NewReceiver(cfg).Receive(context.Background(), forged())
	if response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 without auth token, got %d", response.StatusCode)
	}

	response = NewReceiver(testConfig(false)).Receive(context.Background(), forged())
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 with validation disabled, got %d", response.StatusCode)
	}
}

func TestReceiver_ValidationDisabledSkipsSignature(t *testing.T) {
	cfg := testConfig(false)
	cfg.AuthToken = ""
	receiver := NewReceiver(cfg)
	req := signedRequest(map[string]string{"CallSid": "CA1", "CallStatus": "completed"}, testAuthToken)
	req.Headers = map[string]string{}

	var got Event
	receiver.SubscribeFunc(func(_ context.Context, event Event) (*Response, error) {
		got = event
		return nil, nil
	})
	response := receiver.Receive(context.Background(), req)
	if response.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", response.StatusCode)
	}
	if got.Type != TypeVoiceStatus || got.StatusType() != "completed" {
		t.Fatalf("unexpected event: %#v", got)
	}
}

func TestReceiver_QueryParamsDoNotParticipate(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	params := map[string]string{"MessageSid": "SM1"}
	req := signedRequest(params, testAuthToken)
	req.URL = testURL + "?tenant=acme"
	req.Headers[core.SignatureHeader] = ComputeSignature(testAuthToken, req.URL, params)

	response := receiver.Receive(context.Background(), req)
	if response.StatusCode != http.StatusAccepted {
		t.Fatalf("expected signature over url and body params to validate, got %d", response.StatusCode)
	}
}

func TestReceiver_FirstSubscriberResponseWins(t *testing.T) {
	receiver := NewReceiver(testConfig(false))
	order := []string{}
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		order = append(order, "first")
		return nil, nil
	})
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		order = append(order, "second")
		return TwiMLResponse("<Response/>"), nil
	})
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		order = append(order, "third")
		return JSONResponse(http.StatusOK, map[string]any{"ignored": true}), nil
	})

	response := receiver.Receive(context.Background(), signedRequest(map[string]string{"MessageSid": "SM1", "Body": "hi"}, testAuthToken))
	if string(response.Body) != "<Response/>" || response.Headers["Content-Type"] != "text/xml" {
		t.Fatalf("expected first non-nil response, got %#v", response)
	}
	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("expected all subscribers in order, got %v", order)
	}
}

func TestReceiver_SubscriberErrorIsServerError(t *testing.T) {
	receiver := NewReceiver(testConfig(false))
	after := false
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		return nil, errors.New("database down")
	})
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		after = true
		return nil, nil
	})

	response := receiver.Receive(context.Background(), signedRequest(map[string]string{"MessageSid": "SM1"}, testAuthToken))
	if response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.StatusCode)
	}
	if strings.Contains(string(response.Body), "database") {
		t.Fatalf("expected error details not to leak, got %s", string(response.Body))
	}
	if after {
		t.Fatalf("expected fan-out to stop after a subscriber error")
	}
}

func TestReceiver_JSONBody(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	var got Event
	receiver.SubscribeFunc(func(_ context.Context, event Event) (*Response, error) {
		got = event
		return nil, nil
	})
	params := map[string]string{"MessageSid": "SM1", "MessageStatus": "Sent"}
	body, _ := json.Marshal(params)
	response := receiver.Receive(context.Background(), Request{
		Method:      http.MethodPost,
		URL:         testURL,
		Headers:     map[string]string{core.SignatureHeader: ComputeSignature(testAuthToken, testURL, params)},
		Body:        body,
		ContentType: "application/json; charset=utf-8",
	})
	if response.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", response.StatusCode)
	}
	if got.Type != "message-status-sent" {
		t.Fatalf("unexpected event type %q", got.Type)
	}
}

func TestReceiver_LedgerDedupesProviderRetries(t *testing.T) {
	ledger := NewMemoryLedger()
	receiver := NewReceiver(testConfig(false), WithLedger(ledger))
	calls := 0
	fail := true
	receiver.SubscribeFunc(func(context.Context, Event) (*Response, error) {
		calls++
		if fail {
			return nil, errors.New("temporary")
		}
		return nil, nil
	})

	req := signedRequest(map[string]string{"MessageSid": "SM1", "MessageStatus": "delivered"}, testAuthToken)
	req.Headers[core.IdempotencyTokenHeader] = "token-1"

	if response := receiver.Receive(context.Background(), req); response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 on first failure, got %d", response.StatusCode)
	}
	record, err := ledger.Get(context.Background(), ProviderID, "token-1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady || record.LastError != "temporary" {
		t.Fatalf("expected retry_ready record, got %#v", record)
	}

	fail = false
	if response := receiver.Receive(context.Background(), req); response.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 on provider retry, got %d", response.StatusCode)
	}
	response := receiver.Receive(context.Background(), req)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 duplicate ack, got %d", response.StatusCode)
	}
	if body := decodeResponse(t, response); body["message"] != "Webhook already processed" {
		t.Fatalf("unexpected duplicate body: %#v", body)
	}
	if calls != 2 {
		t.Fatalf("expected subscriber to run twice, got %d", calls)
	}
}

func TestReceiver_ServeHTTP(t *testing.T) {
	receiver := NewReceiver(testConfig(true))
	receiver.SubscribeFunc(func(_ context.Context, event Event) (*Response, error) {
		if event.IsInboundVoiceCall() {
			return TwiMLResponse("<Response><Say>hi</Say></Response>"), nil
		}
		return nil, nil
	})
	params := map[string]string{"CallSid": "CA1", "CallStatus": "ringing"}

	req := httptest.NewRequest(http.MethodPost, testURL, strings.NewReader(formBody(params)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(core.SignatureHeader, ComputeSignature(testAuthToken, testURL, params))
	rec := httptest.NewRecorder()
	receiver.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from subscriber response, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<Say>hi</Say>") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	get := httptest.NewRequest(http.MethodGet, testURL, nil)
	rec = httptest.NewRecorder()
	receiver.ServeHTTP(rec, get)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestRequestURL_HonoursForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://internal:8080/webhooks/twilio?x=1", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "example.com")
	if got := RequestURL(req); got != "https://example.com/webhooks/twilio?x=1" {
		t.Fatalf("unexpected url %q", got)
	}
}
