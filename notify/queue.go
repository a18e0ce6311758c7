package notify

import (
	"context"
	"log/slog"
	"sync"
)

const defaultQueueSize = 64

type message struct {
	subject string
	body    string
}

// Queue delivers notifications on a background worker so that slow mail
// servers never hold up a deployment or a webhook response.
type Queue struct {
	next   Notifier
	logger *slog.Logger
	ch     chan message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a worker draining into next. size <= 0 uses a default.
func NewQueue(next Notifier, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		next:   next,
		logger: logger,
		ch:     make(chan message, size),
		done:   make(chan struct{}),
	}
	go q.worker()
	return q
}

// Notify enqueues the message. When the buffer is full or the queue is
// closed the message is dropped and logged.
func (q *Queue) Notify(subject, body string) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("notification dropped after shutdown", "subject", subject)
		return
	}
	select {
	case q.ch <- message{subject: subject, body: body}:
	default:
		q.logger.Warn("notification queue full, dropping message", "subject", subject)
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer close(q.done)
	for msg := range q.ch {
		q.deliver(msg)
	}
}

func (q *Queue) deliver(msg message) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("notifier panicked", "subject", msg.subject, "panic", r)
		}
	}()
	q.next.Notify(msg.subject, msg.body)
}
