package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the envelope written when middleware rejects a request.
// It matches the handlers' error envelope plus the rejected path.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// Recover turns a handler panic into a 500 envelope. The panic value and
// stack are logged, never returned to the client.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := []zap.Field{
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Stack("stack"),
				}
				if userID, ok := request.UserID(r); ok {
					fields = append(fields, zap.String("user_id", userID.String()))
				}
				logger.Error("handler_panic_recovered", fields...)

				reject(w, r, http.StatusInternalServerError, "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// reject writes an ErrorResponse whose error field is the status text
func reject(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed_to_write_rejection", zap.Int("status_code", status), zap.Error(err))
	}
}
