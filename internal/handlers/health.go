package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// healthCheckTimeout bounds every dependency probe
const healthCheckTimeout = 5 * time.Second

// DatabasePinger is satisfied by *database.DB
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// QueueChecker is satisfied by the job queue
type QueueChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	db    DatabasePinger
	redis redis.Cmdable
	queue QueueChecker
}

// NewHealthChecker creates a new health checker. redisClient and queue may
// be nil when those dependencies are not configured.
func NewHealthChecker(db DatabasePinger, redisClient redis.Cmdable, queue QueueChecker) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient, queue: queue}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		checks := make(map[string]string)
		record := func(name string, err error) {
			if err != nil {
				response.Status = "unhealthy"
				checks[name] = "unhealthy: " + err.Error()
				return
			}
			checks[name] = "healthy"
		}

		record("database", h.probe(r.Context(), h.db.PingContext))
		if h.redis != nil {
			record("redis", h.probe(r.Context(), func(ctx context.Context) error {
				return h.redis.Ping(ctx).Err()
			}))
		} else {
			checks["redis"] = "disabled"
		}
		if h.queue != nil {
			record("rabbitmq", h.probe(r.Context(), h.queue.HealthCheck))
		} else {
			checks["rabbitmq"] = "disabled"
		}

		response.Checks = checks
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) probe(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}
