// Package queue defines the contract for buffering pending record-store
// writes between the reconciliation engine and the write pump.
package queue

import (
	"context"
	"sync"

	"github.com/veloclub/sortie/internal/domain/model"
	"github.com/veloclub/sortie/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultBufferSize    = 10000
)

// Op is the payload type flowing through the queue.
type Op = model.WriteOp

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an op to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, op Op) bool

	// Dequeue returns a channel delivering ops as they become available.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Op

	// Len returns the current number of queued ops.
	Len(ctx context.Context) int

	// Close shuts down the queue; no further enqueues are accepted.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	ops        chan Op
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithBufferSize sets the buffer size of the ops channel.
func WithBufferSize(size int) Option {
	return func(q *InMemoryQueue) {
		if size > 0 {
			q.bufferSize = size
		}
	}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ops = make(chan Op, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an op to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, op Op) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}
	if len(q.ops) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.ops <- op:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.ops))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel delivering ops as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Op {
	out := make(chan Op)
	go func() {
		defer close(out)
		for op := range q.ops {
			select {
			case out <- op:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.ops))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued ops.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.ops)
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.ops)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
