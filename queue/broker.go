package queue

import (
	"context"
	"time"
)

type Broker interface {
	Publish(ctx context.Context, queueName string, message []byte) error
	Subscribe(ctx context.Context, queueName string, handler MessageHandler) error
	Close() error
}

type MessageHandler func(ctx context.Context, message []byte) error

const (
	QueueLedgerRetry    = "ledger-retry"
	QueueLedgerRetryDLQ = "ledger-retry-dlq"
)

type Config struct {
	URL           string
	MaxRetries    int
	RetryDelay    time.Duration
	PrefetchCount int
}

// backoff returns the wait before retry number attempt (0-based): base, 2×base, 4×base…
func backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<attempt)
}

func dlqName(queueName string) string {
	return queueName + "-dlq"
}
