package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const KindREST = "rest"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type BasicAuth struct {
	Username string
	Password string
}

// Request describes one outbound REST call. When Form is set it is encoded
// as the body with an application/x-www-form-urlencoded content type.
type Request struct {
	Method               string
	URL                  string
	Query                map[string]string
	Headers              map[string]string
	Form                 url.Values
	Body                 []byte
	BasicAuth            *BasicAuth
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Doer is the transport dependency of the provider clients.
type Doer interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Client == nil {
		return Response{}, restError(nil, goerrors.CategoryInternal, http.StatusInternalServerError,
			"transport: rest adapter requires an http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	parsedURL, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil {
		return Response{}, restError(err, goerrors.CategoryBadInput, http.StatusBadRequest,
			"transport: invalid request url", "url", strings.TrimSpace(req.URL))
	}
	if parsedURL.String() == "" {
		return Response{}, restError(nil, goerrors.CategoryBadInput, http.StatusBadRequest,
			"transport: request url is required")
	}

	if len(req.Query) > 0 {
		query := parsedURL.Query()
		for key, value := range req.Query {
			if strings.TrimSpace(key) == "" {
				continue
			}
			query.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
		parsedURL.RawQuery = query.Encode()
	}

	body := req.Body
	if req.Form != nil {
		body = []byte(req.Form.Encode())
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, parsedURL.String(), bytes.NewReader(body))
	if err != nil {
		return Response{}, restError(err, goerrors.CategoryBadInput, http.StatusBadRequest,
			"transport: create http request", "method", method, "url", parsedURL.String())
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	setHeaders(httpReq.Header, req.Headers)
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return Response{}, restError(err, goerrors.CategoryExternal, http.StatusBadGateway,
			"transport: execute http request", "method", method, "url", parsedURL.String())
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	resBody, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, restError(err, goerrors.CategoryExternal, http.StatusBadGateway,
			"transport: read response body", "status_code", httpRes.StatusCode)
	}
	if int64(len(resBody)) > maxBodyBytes {
		return Response{}, restError(nil, goerrors.CategoryExternal, http.StatusBadGateway,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			"status_code", httpRes.StatusCode, "response_limit_bytes", maxBodyBytes)
	}

	return Response{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       resBody,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

// setHeaders applies values over target; later calls win.
func setHeaders(target http.Header, values map[string]string) {
	for key, value := range values {
		if key = strings.TrimSpace(key); key != "" {
			target.Set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ Doer = (*RESTAdapter)(nil)
