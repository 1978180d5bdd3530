package twilioapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-twilio/core"
	"github.com/goliatone/go-twilio/transport"
)

const (
	DefaultBaseURL    = "https://api.twilio.com"
	APIVersion        = "2010-04-01"
	defaultTimeout    = 30 * time.Second
	maxResponseBytes  = 1 << 20 // 1 MiB
	messagesResource  = "Messages.json"
	callsResource     = "Calls.json"
	providerErrorName = "twilio"
)

type Config struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	Timeout    time.Duration
	Transport  transport.Doer
}

// Client is the REST backed core.Provider.
type Client struct {
	cfg       Config
	transport transport.Doer
}

type resourcePayload struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	NumSegments  string `json:"num_segments"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type errorPayload struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func New(cfg Config) *Client {
	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	doer := cfg.Transport
	if doer == nil {
		doer = transport.NewRESTAdapter(nil)
	}
	return &Client{cfg: cfg, transport: doer}
}

// NewFromConfig builds a client using the credentials of a core.Config.
func NewFromConfig(cfg core.Config, doer transport.Doer) *Client {
	return New(Config{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		Transport:  doer,
	})
}

func (c *Client) SendMessage(ctx context.Context, req core.ProviderMessageRequest) (core.ProviderResponse, error) {
	form := url.Values{}
	form.Set("To", req.To)
	if sid := strings.TrimSpace(req.MessagingServiceSID); sid != "" {
		form.Set("MessagingServiceSid", sid)
	} else {
		form.Set("From", req.From)
	}
	if req.Body != "" {
		form.Set("Body", req.Body)
	}
	for _, media := range req.MediaURLs {
		if media = strings.TrimSpace(media); media != "" {
			form.Add("MediaUrl", media)
		}
	}
	if callback := strings.TrimSpace(req.StatusCallback); callback != "" {
		form.Set("StatusCallback", callback)
	}
	return c.create(ctx, messagesResource, form)
}

func (c *Client) CreateCall(ctx context.Context, req core.ProviderCallRequest) (core.ProviderResponse, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Url", req.URL)
	if callback := strings.TrimSpace(req.StatusCallback); callback != "" {
		form.Set("StatusCallback", callback)
	}
	for _, event := range req.StatusCallbackEvents {
		if event = strings.TrimSpace(event); event != "" {
			form.Add("StatusCallbackEvent", event)
		}
	}
	if req.Record != "" {
		form.Set("Record", req.Record)
	}
	if req.Timeout > 0 {
		form.Set("Timeout", strconv.Itoa(req.Timeout))
	}
	return c.create(ctx, callsResource, form)
}

func (c *Client) create(ctx context.Context, resource string, form url.Values) (core.ProviderResponse, error) {
	if c == nil {
		return core.ProviderResponse{}, core.NewConfigurationError("twilioapi: client is not configured", nil)
	}
	if c.cfg.AccountSID == "" {
		return core.ProviderResponse{}, core.NewConfigurationError(
			"twilioapi: account sid is required",
			map[string]any{"setting": "account_sid"},
		)
	}
	if c.cfg.AuthToken == "" {
		return core.ProviderResponse{}, core.NewConfigurationError(
			"twilioapi: auth token is required",
			map[string]any{"setting": "auth_token"},
		)
	}

	res, err := c.transport.Do(ctx, transport.Request{
		Method:               http.MethodPost,
		URL:                  c.resourceURL(resource),
		Headers:              map[string]string{"Accept": "application/json"},
		Form:                 form,
		BasicAuth:            &transport.BasicAuth{Username: c.cfg.AccountSID, Password: c.cfg.AuthToken},
		Timeout:              c.cfg.Timeout,
		MaxResponseBodyBytes: maxResponseBytes,
	})
	if err != nil {
		return core.ProviderResponse{}, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.ProviderResponse{}, responseError(resource, res)
	}

	var payload resourcePayload
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return core.ProviderResponse{}, goerrors.Wrap(err, goerrors.CategoryExternal, "twilioapi: decode response").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorProviderFailed).
			WithMetadata(map[string]any{"resource": resource, "status_code": res.StatusCode})
	}
	if strings.TrimSpace(payload.SID) == "" {
		return core.ProviderResponse{}, goerrors.New("twilioapi: response missing sid", goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorProviderFailed).
			WithMetadata(map[string]any{"resource": resource, "status_code": res.StatusCode})
	}

	metadata := map[string]any{"status_code": res.StatusCode}
	if payload.NumSegments != "" {
		metadata["num_segments"] = payload.NumSegments
	}
	if payload.ErrorCode != nil {
		metadata["error_code"] = *payload.ErrorCode
		metadata["error_message"] = payload.ErrorMessage
	}
	return core.ProviderResponse{
		SID:      payload.SID,
		Status:   payload.Status,
		Metadata: metadata,
	}, nil
}

func (c *Client) resourceURL(resource string) string {
	return fmt.Sprintf("%s/%s/Accounts/%s/%s",
		c.cfg.BaseURL, APIVersion, url.PathEscape(c.cfg.AccountSID), resource)
}

func responseError(resource string, res transport.Response) error {
	var payload errorPayload
	_ = json.Unmarshal(res.Body, &payload)

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", res.StatusCode)
	}
	metadata := map[string]any{
		"provider":    providerErrorName,
		"resource":    resource,
		"status_code": res.StatusCode,
	}
	if payload.Code != 0 {
		metadata["twilio_code"] = payload.Code
	}
	if payload.MoreInfo != "" {
		metadata["more_info"] = payload.MoreInfo
	}

	category := goerrors.CategoryExternal
	textCode := core.ErrorProviderFailed
	switch res.StatusCode {
	case http.StatusUnauthorized:
		category, textCode = goerrors.CategoryAuth, core.ErrorUnauthorized
	case http.StatusTooManyRequests:
		category, textCode = goerrors.CategoryRateLimit, core.ErrorRateLimited
	}
	return goerrors.New("twilioapi: "+message, category).
		WithCode(res.StatusCode).
		WithTextCode(textCode).
		WithMetadata(metadata)
}

var _ core.Provider = (*Client)(nil)
