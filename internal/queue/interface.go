package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one consumed job awaiting settlement. Exactly one of Ack or
// Nack must be called.
type Delivery interface {
	Ack() error
	Nack(requeue bool) error
	Job() *Job
}

// Enqueuer publishes jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the broker used by the API and the worker
type JobQueue interface {
	Enqueuer
	// Consume delivers up to prefetchCount unsettled jobs at a time until ctx ends.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// DLQPurger removes dead-lettered messages older than a retention period
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

// Message is a Delivery backed by a RabbitMQ delivery
type Message struct {
	job      *Job
	delivery amqp.Delivery
}

var _ Delivery = (*Message)(nil)

func (m *Message) Ack() error { return m.delivery.Ack(false) }

func (m *Message) Nack(requeue bool) error { return m.delivery.Nack(false, requeue) }

func (m *Message) Job() *Job { return m.job }
