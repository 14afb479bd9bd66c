package gcalendar

import (
	"errors"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 30 * time.Minute
)

// IsRateLimitError reports whether the Calendar API rejected a call for quota
func IsRateLimitError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if apiErr.Code == http.StatusForbidden {
		for _, item := range apiErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// IsPermanentError reports whether retrying the call cannot succeed
func IsPermanentError(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || IsRateLimitError(err) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

// RetryDelay returns an exponential backoff for the given attempt
func RetryDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
