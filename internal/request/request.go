// Package request carries per-request identity through contexts.
package request

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserIDHeader carries the caller identity set by the fronting gateway
const UserIDHeader = "X-User-ID"

// ErrMissingUserID is returned when a request carries no usable identity
var ErrMissingUserID = errors.New("missing or invalid " + UserIDHeader + " header")

type contextKey string

const userIDContextKey contextKey = "user_id"

// ParseUserID reads the caller identity from the request headers
func ParseUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" {
		return uuid.Nil, ErrMissingUserID
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrMissingUserID
	}
	return id, nil
}

// WithUserID returns a context with the caller identity attached
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// UserID returns the caller identity of the request, if any
func UserID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDContextKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ClientIP returns the originating client address: the first X-Forwarded-For
// hop, then X-Real-IP, then the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
