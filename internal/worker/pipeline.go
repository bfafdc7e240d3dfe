package worker

import (
	"context"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/queue"
)

// Pipeline is the producer-facing side of the worker: it owns the queue and
// the single worker that drains it.
type Pipeline[T any] struct {
	queue  *queue.Queue[message.Timed[T]]
	worker *Worker[T]
}

// NewPipeline creates a pipeline whose worker applies transform and delivers
// results to sink. The worker is not running until Start is called.
func NewPipeline[T any](transform Transform[T], sink ResultSink[T], config Config) *Pipeline[T] {
	q := queue.New[message.Timed[T]]()
	w := New(q, transform, sink, config)
	return &Pipeline[T]{queue: q, worker: w}
}

// Start launches the worker.
func (p *Pipeline[T]) Start(ctx context.Context) error {
	return p.worker.Start(ctx)
}

// Stop stops the worker, waits for it to exit, and closes the queue.
// Items still queued are abandoned. Stop is idempotent.
func (p *Pipeline[T]) Stop() {
	p.worker.Stop()
	p.queue.Close()
}

// Submit wraps payload in a new keyed item, stamps it with the current time
// and enqueues it. It never blocks on the worker.
//
// onPending, if not nil, is called synchronously with the pending value before
// the item becomes visible to the worker, so the caller can record it before
// any result for it can exist.
func (p *Pipeline[T]) Submit(payload T, onPending func(message.Timed[T])) (message.Timed[T], error) {
	return p.SubmitItem(message.NewItem(payload), onPending)
}

// SubmitItem is Submit for an item whose key was assigned by the caller.
func (p *Pipeline[T]) SubmitItem(item message.Item[T], onPending func(message.Timed[T])) (message.Timed[T], error) {
	if p.queue.Closed() {
		return message.Timed[T]{}, ErrStopped
	}

	pending := message.Pending(item, p.worker.config.Clock())
	if onPending != nil {
		onPending(pending)
	}
	if !p.queue.Push(pending) {
		return pending, ErrStopped
	}
	return pending, nil
}

// Pending returns the number of items waiting for the worker.
func (p *Pipeline[T]) Pending() int {
	return p.queue.Len()
}

// Worker returns the pipeline's worker.
func (p *Pipeline[T]) Worker() *Worker[T] {
	return p.worker
}
