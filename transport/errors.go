package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-twilio/core"
)

var textCodeByCategory = map[goerrors.Category]string{
	goerrors.CategoryBadInput:   core.ErrorBadInput,
	goerrors.CategoryValidation: core.ErrorBadInput,
	goerrors.CategoryAuth:       core.ErrorUnauthorized,
	goerrors.CategoryAuthz:      core.ErrorForbidden,
	goerrors.CategoryRateLimit:  core.ErrorRateLimited,
	goerrors.CategoryExternal:   core.ErrorProviderFailed,
}

// restError builds a go-errors error tagged with the REST adapter kind. When
// source is non-nil it is wrapped. fields are key/value pairs added to the
// metadata.
func restError(source error, category goerrors.Category, status int, message string, fields ...any) error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	textCode, ok := textCodeByCategory[category]
	if !ok {
		textCode = core.ErrorInternal
	}

	metadata := map[string]any{"adapter": KindREST}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, isString := fields[i].(string); isString {
			metadata[key] = fields[i+1]
		}
	}
	return err.WithCode(status).WithTextCode(textCode).WithMetadata(metadata)
}
