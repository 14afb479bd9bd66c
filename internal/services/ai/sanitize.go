package ai

import (
	logpkg "github.com/benvon/voice-planner/internal/logger"
)

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey keeps the first and last four characters of a key
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// Preview returns a log-safe excerpt of a prompt or response. Debug mode
// keeps more of the content but is still sanitized.
func Preview(s string, debug bool) string {
	if debug {
		return logpkg.SanitizeDebugContent(s)
	}
	return logpkg.SanitizeString(s, MaxPreviewLength)
}
