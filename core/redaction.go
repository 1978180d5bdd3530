package core

import "strings"

// RedactedValue replaces the value of any credential-bearing key.
const RedactedValue = "[REDACTED]"

// Keys are compared after lowercasing and dropping '-' and '_', so
// "AuthToken", "auth_token" and "X-Twilio-Signature" all normalize to a
// form that one entry below matches.
var (
	redactedKeyFragments = []string{
		"password",
		"secret",
		"token",
		"authorization",
		"apikey",
		"accesskey",
		"credential",
		"signature",
	}
	visibleKeys = map[string]struct{}{
		"providerid":       {},
		"messagesid":       {},
		"smssid":           {},
		"callsid":          {},
		"accountsid":       {},
		"idempotencykey":   {},
		"idempotencytoken": {},
		"traceid":          {},
		"requestid":        {},
	}
)

// RedactSensitiveMap returns a deep copy of metadata with credential values
// replaced. Message and call SIDs stay visible for correlation.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if isSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for key, item := range typed {
			if isSensitiveKey(key) {
				item = RedactedValue
			}
			out[key] = item
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	}
	return value
}

func isSensitiveKey(key string) bool {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(key)))
	if normalized == "" {
		return false
	}
	if _, ok := visibleKeys[normalized]; ok {
		return false
	}
	for _, fragment := range redactedKeyFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}
