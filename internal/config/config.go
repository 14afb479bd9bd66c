package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/logger"
	"github.com/ulule/limiter/v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	RedisURL         string
	RateLimit        string
	EnableHSTS       bool
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELSampleRatio  float64
	LogFormat        string

	// Routine lifecycle scheduling, run by the worker
	RoutineSweepTime          string
	RoutineExpiryCheckTime    string
	RoutineExpiringWindowDays int
	SchedulerTimezone         string
	DLQRetention              time.Duration

	PreferencesCacheTTL time.Duration

	// Calendar publishing is disabled when no credentials are configured
	GoogleCalendarCredentials string
	GoogleCalendarID          string
	GoogleCalendarRPS         float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimit:        getEnv("RATE_LIMIT", "20-S"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:  getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		LogFormat:        getEnv("LOG_FORMAT", logger.FormatJSON),

		RoutineSweepTime:          getEnv("ROUTINE_SWEEP_TIME", "02:00"),
		RoutineExpiryCheckTime:    getEnv("ROUTINE_EXPIRY_CHECK_TIME", "09:00"),
		RoutineExpiringWindowDays: getEnvInt("ROUTINE_EXPIRING_WINDOW_DAYS", 7),
		SchedulerTimezone:         getEnv("SCHEDULER_TIMEZONE", "UTC"),
		DLQRetention:              getEnvDuration("DLQ_RETENTION", 24*time.Hour),

		PreferencesCacheTTL: getEnvDuration("PREFERENCES_CACHE_TTL", 5*time.Minute),

		GoogleCalendarCredentials: getEnv("GOOGLE_CALENDAR_CREDENTIALS", ""),
		GoogleCalendarID:          getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCalendarRPS:         getEnvFloat("GOOGLE_CALENDAR_RPS", 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing (routine sweeps and calendar publishing require RabbitMQ)")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT %q is invalid: %w", c.RateLimit, err))
	}
	if !clock.Valid(c.RoutineSweepTime) {
		errs = append(errs, fmt.Errorf("ROUTINE_SWEEP_TIME %q must be HH:MM", c.RoutineSweepTime))
	}
	if !clock.Valid(c.RoutineExpiryCheckTime) {
		errs = append(errs, fmt.Errorf("ROUTINE_EXPIRY_CHECK_TIME %q must be HH:MM", c.RoutineExpiryCheckTime))
	}
	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_TIMEZONE %q is invalid: %w", c.SchedulerTimezone, err))
	}
	if c.RoutineExpiringWindowDays < 1 {
		errs = append(errs, fmt.Errorf("ROUTINE_EXPIRING_WINDOW_DAYS must be at least 1"))
	}
	if c.LogFormat != logger.FormatJSON && c.LogFormat != logger.FormatConsole {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or console", c.LogFormat))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1"))
	}
	return errors.Join(errs...)
}

// SchedulerLocation returns the timezone daily jobs fire in
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CalendarEnabled reports whether calendar publishing is configured
func (c *Config) CalendarEnabled() bool {
	return c.GoogleCalendarCredentials != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "5m") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
