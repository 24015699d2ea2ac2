package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrBrokerClosed = errors.New("broker closed")

// MemoryBroker is an in-process Broker used when no RabbitMQ URL is configured.
// Messages are lost on restart.
type MemoryBroker struct {
	mu         sync.Mutex
	queues     map[string]chan []byte
	dead       map[string][][]byte
	maxRetries int
	retryDelay time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

func NewMemoryBroker(cfg Config) *MemoryBroker {
	return &MemoryBroker{
		queues:     make(map[string]chan []byte),
		dead:       make(map[string][][]byte),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		done:       make(chan struct{}),
	}
}

func (b *MemoryBroker) queue(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[name]
	if !ok {
		q = make(chan []byte, 256)
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, queueName string, message []byte) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	msg := append([]byte(nil), message...)
	select {
	case b.queue(queueName) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrBrokerClosed
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, queueName string, handler MessageHandler) error {
	q := b.queue(queueName)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case msg := <-q:
				b.handleMessage(ctx, queueName, msg, handler)
			}
		}
	}()
	return nil
}

func (b *MemoryBroker) handleMessage(ctx context.Context, queueName string, msg []byte, handler MessageHandler) {
	for attempt := 0; ; attempt++ {
		if err := handler(ctx, msg); err == nil {
			return
		}
		if attempt >= b.maxRetries {
			b.mu.Lock()
			b.dead[queueName] = append(b.dead[queueName], msg)
			b.mu.Unlock()
			return
		}
		select {
		case <-time.After(backoff(b.retryDelay, attempt)):
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

// DeadLetters returns messages from queueName that exhausted their retries.
func (b *MemoryBroker) DeadLetters(queueName string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.dead[queueName]...)
}

func (b *MemoryBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
