// Package queue provides an unbounded FIFO queue whose consumer can block
// until an item arrives, and be woken by cancellation.
//
// Producers never block: Push appends under a short critical section and
// signals the consumer. The mutex protects only the container; callers process
// popped items after the lock has been released.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueCancelled is returned by PopBlocking when the wait was abandoned,
// either because the context was cancelled or the queue was closed.
// It is the expected shutdown path, not a fault.
var ErrQueueCancelled = errors.New("queue wait cancelled")

// Queue is a blocking, ordered work queue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// wake holds at most one pending notification for a waiting consumer.
	wake chan struct{}
	// done is closed by Close to release every waiter.
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends item to the tail and wakes a waiting consumer.
// It never blocks. Items pushed after Close are dropped and Push returns false.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// A notification is already pending.
	}
	return true
}

// PopBlocking removes and returns the head of the queue, waiting while the
// queue is empty. If ctx is cancelled or the queue is closed while waiting it
// returns ErrQueueCancelled and removes nothing.
func (q *Queue[T]) PopBlocking(ctx context.Context) (T, error) {
	for {
		if item, ok := q.tryPop(); ok {
			return item, nil
		}

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			var zero T
			return zero, ErrQueueCancelled
		}

		select {
		case <-q.wake:
			// Re-check: another consumer may have taken the item.
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%w: %w", ErrQueueCancelled, context.Cause(ctx))
		}
	}
}

// TryPop removes and returns the head without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	return q.tryPop()
}

func (q *Queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the backing array once drained or when the dead prefix dominates.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops the queue from accepting items and releases waiting consumers.
// Items already queued can still be taken with PopBlocking or TryPop.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
