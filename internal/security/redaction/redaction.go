// Package redaction masks likely secret material in context dumps and log
// lines. Contexts carry caller-supplied environment variables, and a
// preserved context file is exactly the thing a human will paste into a bug
// report, so anything resembling a credential is replaced before display.
package redaction

import "strings"

// Placeholder substitutes for a redacted value.
const Placeholder = "[REDACTED]"

var (
	sensitiveKeyFragments = []string{
		"secret", "password", "passwd", "credential", "authorization",
		"cookie", "token", "api_key", "apikey", "private_key",
	}
	sensitiveValueIndicators = []string{
		"bearer ", "ghp_", "sk-", "xoxb-", "xoxp-", "-----begin",
		"access_token", "refresh_token",
	}
)

// IsSensitiveKey reports whether the key name likely references secret data.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return lower == "key" || strings.HasSuffix(lower, "_key")
}

// LooksLikeSecret reports whether the value itself appears to be secret
// material, independent of its key.
func LooksLikeSecret(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, indicator := range sensitiveValueIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// RedactStringValue returns the placeholder when either the key or the value
// appears sensitive, and the value unchanged otherwise.
func RedactStringValue(key, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveKey(key) || LooksLikeSecret(value) {
		return Placeholder
	}
	return value
}

// RedactStringMap clones values, replacing anything sensitive. The input map
// is never mutated.
func RedactStringMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	sanitized := make(map[string]string, len(values))
	for k, v := range values {
		sanitized[k] = RedactStringValue(k, v)
	}
	return sanitized
}
