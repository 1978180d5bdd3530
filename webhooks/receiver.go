package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-twilio/core"
)

const (
	ProviderID = "twilio"

	messageReceived           = "Webhook received"
	messageDuplicate          = "Webhook already processed"
	messageMissingSignature   = "Missing signature header"
	messageInvalidSignature   = "Invalid signature"
	messageConfigurationError = "Twilio configuration error."
	messageProcessingError    = "Webhook processing failed."

	defaultMaxBodyBytes = int64(1 << 20)
)

// Request is the transport independent view of an inbound webhook. URL is
// the full URL Twilio requested and is part of the signed content.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        []byte
	ContentType string
}

// Response is written back to Twilio as is.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// JSONResponse encodes payload as the response body.
func JSONResponse(statusCode int, payload any) *Response {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"success":false}`)
		statusCode = http.StatusInternalServerError
	}
	return &Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

// TwiMLResponse returns an XML body for voice and messaging replies.
func TwiMLResponse(twiml string) *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/xml"},
		Body:       []byte(twiml),
	}
}

func statusResponse(statusCode int, success bool, message string) *Response {
	return JSONResponse(statusCode, map[string]any{
		"success": success,
		"message": message,
	})
}

// Subscriber receives every verified webhook. A non-nil response is returned
// to Twilio; the first one wins and later subscribers still run.
type Subscriber interface {
	HandleWebhook(ctx context.Context, event Event) (*Response, error)
}

type SubscriberFunc func(ctx context.Context, event Event) (*Response, error)

func (f SubscriberFunc) HandleWebhook(ctx context.Context, event Event) (*Response, error) {
	return f(ctx, event)
}

// URLResolver rebuilds the URL Twilio signed from the incoming request.
type URLResolver func(r *http.Request) string

type ReceiverOption func(*Receiver)

func WithLogger(logger core.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) ReceiverOption {
	return func(r *Receiver) {
		r.loggerProvider = provider
	}
}

// WithLedger enables dedupe of provider retries on the idempotency token.
func WithLedger(ledger DeliveryLedger) ReceiverOption {
	return func(r *Receiver) {
		r.ledger = ledger
	}
}

func WithURLResolver(resolver URLResolver) ReceiverOption {
	return func(r *Receiver) {
		r.resolveURL = resolver
	}
}

func WithMaxBodyBytes(limit int64) ReceiverOption {
	return func(r *Receiver) {
		r.maxBodyBytes = limit
	}
}

func WithClaimLease(lease time.Duration) ReceiverOption {
	return func(r *Receiver) {
		r.claimLease = lease
	}
}

func WithMaxAttempts(attempts int) ReceiverOption {
	return func(r *Receiver) {
		r.maxAttempts = attempts
	}
}

// WithRetryPolicy delays reclaiming a failed delivery. Without one a failed
// delivery is claimable as soon as Twilio retries it.
func WithRetryPolicy(policy RetryPolicy) ReceiverOption {
	return func(r *Receiver) {
		r.retryPolicy = policy
	}
}

func WithReceiverClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		r.now = now
	}
}

// Receiver authenticates, decodes, classifies and fans out Twilio webhooks.
type Receiver struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	ledger         DeliveryLedger
	retryPolicy    RetryPolicy
	resolveURL     URLResolver
	maxBodyBytes   int64
	claimLease     time.Duration
	maxAttempts    int
	now            func() time.Time

	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewReceiver(cfg core.Config, opts ...ReceiverOption) *Receiver {
	receiver := &Receiver{
		config:       cfg,
		resolveURL:   RequestURL,
		maxBodyBytes: defaultMaxBodyBytes,
		claimLease:   30 * time.Second,
		maxAttempts:  8,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(receiver)
		}
	}
	provider, logger := glog.Resolve("twilio.webhooks", receiver.loggerProvider, receiver.logger)
	receiver.loggerProvider = provider
	receiver.logger = glog.Ensure(logger)
	return receiver
}

// Subscribe appends a subscriber; subscribers run in registration order.
func (r *Receiver) Subscribe(subscriber Subscriber) {
	if r == nil || subscriber == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, subscriber)
}

func (r *Receiver) SubscribeFunc(fn func(ctx context.Context, event Event) (*Response, error)) {
	if fn == nil {
		return
	}
	r.Subscribe(SubscriberFunc(fn))
}

// Path is the configured mount path for the handler.
func (r *Receiver) Path() string {
	if r == nil || strings.TrimSpace(r.config.Webhook.Path) == "" {
		return core.DefaultWebhookPath
	}
	return r.config.Webhook.Path
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResponse(w, statusResponse(http.StatusMethodNotAllowed, false, "Method not allowed"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, r.bodyLimit()+1))
	if err != nil {
		writeResponse(w, statusResponse(http.StatusBadRequest, false, "Unable to read request body"))
		return
	}
	if int64(len(body)) > r.bodyLimit() {
		writeResponse(w, statusResponse(http.StatusRequestEntityTooLarge, false, "Request body too large"))
		return
	}

	headers := make(map[string]string, len(req.Header))
	for key := range req.Header {
		headers[key] = req.Header.Get(key)
	}
	resolver := r.resolveURL
	if resolver == nil {
		resolver = RequestURL
	}

	response := r.Receive(req.Context(), Request{
		Method:      req.Method,
		URL:         resolver(req),
		Headers:     headers,
		Body:        body,
		ContentType: req.Header.Get("Content-Type"),
	})
	writeResponse(w, response)
}

// Receive runs the verification and dispatch pipeline for one request.
func (r *Receiver) Receive(ctx context.Context, req Request) *Response {
	if r.config.Webhook.ValidateSignature && headerValue(req.Headers, core.SignatureHeader) == "" {
		return statusResponse(http.StatusForbidden, false, messageMissingSignature)
	}

	params, payload, err := decodeBody(req)
	if err != nil {
		r.logger.Warn("twilio webhook decode failed", "url", req.URL, "error", err.Error())
		if r.config.Webhook.ValidateSignature {
			// An undecodable body cannot carry a valid signature.
			if strings.TrimSpace(r.config.AuthToken) == "" {
				r.logger.Error("twilio auth token is not configured")
				return statusResponse(http.StatusInternalServerError, false, messageConfigurationError)
			}
			return statusResponse(http.StatusForbidden, false, messageInvalidSignature)
		}
		return statusResponse(http.StatusBadRequest, false, "Invalid webhook payload")
	}

	if r.config.Webhook.ValidateSignature {
		if response := r.verify(req, params); response != nil {
			return response
		}
	}

	if r.config.Debug {
		r.logger.Debug("twilio webhook received", "payload", core.RedactSensitiveMap(payload))
	}

	event := NewEvent(Payload(payload), "")

	token := headerValue(req.Headers, core.IdempotencyTokenHeader)
	if r.ledger == nil || token == "" {
		response, err := r.dispatch(ctx, event)
		if err != nil {
			return statusResponse(http.StatusInternalServerError, false, messageProcessingError)
		}
		return response
	}

	delivery, claimed, err := r.ledger.Claim(ctx, ProviderID, token, req.Body, r.claimLease)
	if err != nil {
		r.logger.Error("twilio webhook ledger claim failed", "idempotency_token", token, "error", err.Error())
		return statusResponse(http.StatusInternalServerError, false, messageProcessingError)
	}
	if !claimed {
		if r.config.Debug {
			r.logger.Debug("twilio webhook deduped", "idempotency_token", token, "status", delivery.Status)
		}
		return statusResponse(http.StatusOK, true, messageDuplicate)
	}

	response, err := r.dispatch(ctx, event)
	if err != nil {
		nextAttemptAt := r.now()
		if r.retryPolicy != nil {
			nextAttemptAt = nextAttemptAt.Add(r.retryPolicy.NextDelay(delivery.Attempts))
		}
		if failErr := r.ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, r.maxAttempts); failErr != nil {
			r.logger.Error("twilio webhook ledger fail failed", "idempotency_token", token, "error", failErr.Error())
		}
		return statusResponse(http.StatusInternalServerError, false, messageProcessingError)
	}
	if err := r.ledger.Complete(ctx, delivery.ClaimID); err != nil {
		r.logger.Error("twilio webhook ledger complete failed", "idempotency_token", token, "error", err.Error())
	}
	return response
}

func (r *Receiver) verify(req Request, params map[string]string) *Response {
	signature := headerValue(req.Headers, core.SignatureHeader)
	err := NewRequestValidator(r.config.AuthToken).Verify(signature, req.URL, params)
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return statusResponse(http.StatusInternalServerError, false, messageConfigurationError)
	}
	switch rich.TextCode {
	case core.ErrorConfiguration:
		r.logger.Error("twilio auth token is not configured")
		return statusResponse(http.StatusInternalServerError, false, messageConfigurationError)
	case core.ErrorSignatureInvalid:
		r.logger.Warn("invalid twilio webhook signature",
			"url", req.URL,
			"params", core.RedactSensitiveMap(stringMapToAny(params)),
			"signature", signature,
		)
	}
	return statusResponse(rich.Code, false, rich.Message)
}

func (r *Receiver) dispatch(ctx context.Context, event Event) (*Response, error) {
	var selected *Response
	for _, subscriber := range r.snapshot() {
		response, err := subscriber.HandleWebhook(ctx, event)
		if err != nil {
			r.logger.Error("twilio webhook subscriber failed",
				"type", event.Type,
				"message_sid", event.MessageSID(),
				"call_sid", event.CallSID(),
				"error", err.Error(),
			)
			return nil, err
		}
		if selected == nil && response != nil {
			selected = response
		}
	}
	if selected != nil {
		return selected, nil
	}
	return statusResponse(http.StatusAccepted, true, messageReceived), nil
}

func (r *Receiver) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, len(r.subscribers))
	copy(out, r.subscribers)
	return out
}

func (r *Receiver) bodyLimit() int64 {
	if r != nil && r.maxBodyBytes > 0 {
		return r.maxBodyBytes
	}
	return defaultMaxBodyBytes
}

// RequestURL rebuilds the public URL of req, honouring X-Forwarded-Proto and
// X-Forwarded-Host set by a proxy in front of the service.
func RequestURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}
	host := req.Host
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-Host")); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + host + req.URL.RequestURI()
}

// decodeBody returns the signed parameters and the full payload. Form bodies
// are the Twilio default; JSON bodies contribute their top-level scalar
// values to the signed parameters.
func decodeBody(req Request) (map[string]string, map[string]any, error) {
	contentType := req.ContentType
	if contentType == "" {
		contentType = headerValue(req.Headers, "Content-Type")
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if strings.HasSuffix(mediaType, "json") {
		payload := map[string]any{}
		if len(strings.TrimSpace(string(req.Body))) > 0 {
			if err := json.Unmarshal(req.Body, &payload); err != nil {
				return nil, nil, fmt.Errorf("webhooks: decode json body: %w", err)
			}
		}
		params := map[string]string{}
		for key, value := range payload {
			switch typed := value.(type) {
			case nil, map[string]any, []any:
				continue
			case string:
				params[key] = typed
			default:
				params[key] = fmt.Sprint(typed)
			}
		}
		return params, payload, nil
	}

	values, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("webhooks: decode form body: %w", err)
	}
	params := make(map[string]string, len(values))
	payload := make(map[string]any, len(values))
	for key, items := range values {
		if len(items) == 0 {
			continue
		}
		params[key] = items[0]
		if len(items) == 1 {
			payload[key] = items[0]
			continue
		}
		copied := make([]string, len(items))
		copy(copied, items)
		payload[key] = copied
	}
	return params, payload, nil
}

func writeResponse(w http.ResponseWriter, response *Response) {
	if response == nil {
		response = statusResponse(http.StatusAccepted, true, messageReceived)
	}
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(response.Body) > 0 {
		_, _ = w.Write(response.Body)
	}
}

func stringMapToAny(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
