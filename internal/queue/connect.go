package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultConnectAttempts covers a broker that starts alongside the service
	DefaultConnectAttempts = 10

	initialConnectDelay = 2 * time.Second
	maxConnectDelay     = 30 * time.Second
)

// connectDelay is the exponential backoff before attempt+1, capped at 30s
func connectDelay(attempt int) time.Duration {
	if attempt > 8 {
		return maxConnectDelay
	}
	delay := initialConnectDelay * time.Duration(1<<uint(attempt))
	if delay > maxConnectDelay {
		return maxConnectDelay
	}
	return delay
}

// Connect dials RabbitMQ, retrying with exponential backoff until attempts
// are exhausted or ctx is done
func Connect(ctx context.Context, amqpURL string, attempts int, log *zap.Logger) (*RabbitMQQueue, error) {
	return connectWith(ctx, attempts, log, func() (*RabbitMQQueue, error) {
		return NewRabbitMQQueue(amqpURL, log)
	})
}

func connectWith(ctx context.Context, attempts int, log *zap.Logger, dial func() (*RabbitMQQueue, error)) (*RabbitMQQueue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := dial()
		if err == nil {
			log.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := connectDelay(attempt)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}
