package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength bounds URL paths in logs
	MaxPathLength = 500
	// MaxTitleLength bounds task and routine titles in logs
	MaxTitleLength = 200
	// MaxErrorMessageLength bounds error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is used when no explicit bound is given
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength bounds prompts and model responses logged in debug mode
	MaxDebugContentLength = 10000
)

// SanitizePath prepares a request path for logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeTitle prepares a user supplied title for logging. Line breaks are
// flattened so one title never spans several log lines.
func SanitizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	return SanitizeString(title, MaxTitleLength)
}

// SanitizeString drops invalid UTF-8 and control characters, then truncates
// to maxLength bytes without splitting a rune
func SanitizeString(s string, maxLength int) string {
	return sanitize(s, maxLength, false)
}

// SanitizeDebugContent is SanitizeString for multi-line prompts and model
// output: line breaks survive and the bound is MaxDebugContentLength
func SanitizeDebugContent(s string) string {
	return sanitize(s, MaxDebugContentLength, true)
}

func sanitize(s string, maxLength int, keepNewlines bool) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || (keepNewlines && r == '\n') {
			return r
		}
		return -1
	}, s)
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SanitizeError prepares an error message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}
