package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/benvon/voice-planner/internal/request"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	knownUsersSize = 10000
	knownUsersTTL  = 10 * time.Minute
)

// UserEnsurer provisions a user row for a gateway identity
type UserEnsurer interface {
	EnsureExists(ctx context.Context, id uuid.UUID) error
}

// Identity trusts the X-User-ID header set by the fronting gateway, makes
// sure the user exists and attaches the ID to the request context.
// Recently seen users skip the database round trip.
func Identity(users UserEnsurer, logger *zap.Logger) func(http.Handler) http.Handler {
	known := expirable.NewLRU[uuid.UUID, struct{}](knownUsersSize, nil, knownUsersTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := request.ParseUserID(r)
			if err != nil {
				reject(w, r, http.StatusUnauthorized, err.Error(), logger)
				return
			}

			if _, ok := known.Get(userID); !ok {
				if err := users.EnsureExists(r.Context(), userID); err != nil {
					logger.Error("failed_to_ensure_user",
						zap.String("user_id", userID.String()),
						zap.Error(err),
					)
					reject(w, r, http.StatusInternalServerError, "Failed to load user", logger)
					return
				}
				known.Add(userID, struct{}{})
			}

			next.ServeHTTP(w, r.WithContext(request.WithUserID(r.Context(), userID)))
		})
	}
}
