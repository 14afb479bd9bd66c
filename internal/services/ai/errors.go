package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidResponse is returned when the model answer is not usable JSON
	ErrInvalidResponse = errors.New("invalid extraction response")
	// ErrNotConfigured is returned when no API key is configured
	ErrNotConfigured = errors.New("extraction provider is not configured")
)

// APIError represents an error from the AI provider API
type APIError struct {
	Message    string
	Type       string
	Code       string
	StatusCode int
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// Is lets errors.Is match the rate limit and quota sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		return e.Code == "insufficient_quota"
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests && e.Code != "insufficient_quota"
	default:
		return false
	}
}

// toAPIError converts SDK errors into an *APIError; other errors pass through
func toAPIError(err error) error {
	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return err
	}
	apiErr := &APIError{
		Message:    sdkErr.Message,
		Type:       sdkErr.Type,
		Code:       sdkErr.Code,
		StatusCode: sdkErr.StatusCode,
	}
	// Some compatible endpoints only report the code in the raw body.
	if apiErr.Code == "" && strings.Contains(sdkErr.Error(), "insufficient_quota") {
		apiErr.Code = "insufficient_quota"
	}
	switch {
	case apiErr.Code == "insufficient_quota":
		apiErr.RetryAfter = time.Hour
	case apiErr.StatusCode == http.StatusTooManyRequests:
		apiErr.RetryAfter = time.Minute
	}
	return apiErr
}

// IsRateLimitError checks if an error is a transient rate limit error
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// RetryAfter returns how long the caller should wait before retrying, or 0
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
