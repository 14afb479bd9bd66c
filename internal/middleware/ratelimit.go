package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/voice-planner/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRate is the request budget per client when none is configured
const DefaultRate = "20-S"

// NewRateLimitStore returns a Redis store shared by every server instance,
// or a process-local store when Redis is not configured
func NewRateLimitStore(redisClient *redis.Client) (limiter.Store, error) {
	if redisClient == nil {
		return memory.NewStore(), nil
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "planner_ratelimit"})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, nil
}

// RateLimit limits requests per user, falling back to the client IP for
// requests without an identity. rate uses the ulule format ("20-S", "1000-H").
func RateLimit(store limiter.Store, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}

	instance := limiter.New(store, parsed)
	keyGetter := func(r *http.Request) string {
		if id, err := request.ParseUserID(r); err == nil {
			return "user:" + id.String()
		}
		return "ip:" + request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler, nil
}
