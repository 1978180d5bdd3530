package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration    = "TWILIO_CONFIGURATION_ERROR"
	ErrorBadInput         = "TWILIO_BAD_INPUT"
	ErrorSignatureMissing = "TWILIO_SIGNATURE_MISSING"
	ErrorSignatureInvalid = "TWILIO_SIGNATURE_INVALID"
	ErrorProviderFailed   = "TWILIO_PROVIDER_FAILED"
	ErrorQueueFailed      = "TWILIO_QUEUE_FAILED"
	ErrorUnauthorized     = "TWILIO_UNAUTHORIZED"
	ErrorForbidden        = "TWILIO_FORBIDDEN"
	ErrorRateLimited      = "TWILIO_RATE_LIMITED"
	ErrorNotFound         = "TWILIO_NOT_FOUND"
	ErrorInternal         = "TWILIO_INTERNAL_ERROR"
	ErrorHookFailed       = "TWILIO_HOOK_FAILED"
)

// NewConfigurationError reports a missing or unusable configuration value.
// Configuration errors are fatal to the current call and never retried.
func NewConfigurationError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func IsConfigurationError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == ErrorConfiguration
}

// MapError normalizes arbitrary errors into the package error envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not configured"), strings.Contains(msg, "configuration"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryValidation).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorConfiguration))
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryRateLimit))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorProviderFailed
	default:
		return ErrorInternal
	}
}

// HTTPStatus maps an error category to the status code used in envelopes.
func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
