package webhooks

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-twilio/core"
)

// ComputeSignature returns the X-Twilio-Signature value for a URL and its
// POST body parameters: base64(HMAC-SHA1(authToken, url + sorted key/value
// pairs)).
func ComputeSignature(authToken string, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(url)
	for _, key := range keys {
		builder.WriteString(key)
		builder.WriteString(params[key])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(builder.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Validate reports whether signature matches the expected signature. It
// never fails for a mismatch; it only returns false.
func Validate(authToken string, signature string, url string, params map[string]string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, url, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateSignature builds a valid signature for tests and local tooling.
func GenerateSignature(authToken string, url string, params map[string]string) string {
	return ComputeSignature(authToken, url, params)
}

// RequestValidator binds the signature helpers to one auth token.
type RequestValidator struct {
	AuthToken string
}

func NewRequestValidator(authToken string) RequestValidator {
	return RequestValidator{AuthToken: authToken}
}

func (v RequestValidator) ComputeSignature(url string, params map[string]string) string {
	return ComputeSignature(v.AuthToken, url, params)
}

func (v RequestValidator) Validate(signature string, url string, params map[string]string) bool {
	return Validate(v.AuthToken, signature, url, params)
}

// Verify checks the signature header and returns a structured error for
// each failure mode: missing header (403), missing auth token (500) and
// mismatch (403).
func (v RequestValidator) Verify(signature string, url string, params map[string]string) error {
	if strings.TrimSpace(signature) == "" {
		return newSignatureError(messageMissingSignature, core.ErrorSignatureMissing)
	}
	if strings.TrimSpace(v.AuthToken) == "" {
		return core.NewConfigurationError(messageConfigurationError, map[string]any{
			"setting": "auth_token",
		})
	}
	if !v.Validate(signature, url, params) {
		return newSignatureError(messageInvalidSignature, core.ErrorSignatureInvalid)
	}
	return nil
}

func newSignatureError(message string, textCode string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(textCode)
}
