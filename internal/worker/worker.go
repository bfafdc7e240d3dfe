// Package worker runs the single background loop that processes submitted
// items strictly one at a time, in submission order.
//
// Architecture:
//
//	Pipeline.Submit → Queue → Worker → Transform → ResultSink
//
// The Worker loop:
//  1. Wait for the next item (Idle)
//  2. Apply the transform to its payload (Processing)
//  3. Measure the time since submission, queue residency included
//  4. Hand the new item to the ResultSink without waiting for it to be applied
//  5. Repeat until stopped
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/queue"
	"github.com/aceteam-ai/seqcipher/internal/usage"
)

var (
	// ErrTransformFailure tags a result whose transform returned an error or panicked.
	ErrTransformFailure = errors.New("transform failed")

	// ErrAlreadyStarted is returned by Start when the worker was started before.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("worker stopped")
)

// Transform turns a payload into its processed form.
// It is treated as opaque and possibly slow; it is never run under the queue lock.
type Transform[T any] func(ctx context.Context, payload T) (T, error)

// State is the lifecycle state of a Worker.
type State int32

const (
	StateNew State = iota
	StateIdle
	StateProcessing
	StateStopping
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopping:
		return "stopping"
	case StateTerminal:
		return "terminal"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config holds configuration for the worker.
type Config struct {
	// WorkerID identifies this worker instance in logs and ledger records
	WorkerID string

	// Clock returns the current time (default: time.Now)
	Clock func() time.Time

	// ActivityFn is called for log messages (if set, suppresses stdout)
	ActivityFn func(level, msg string)

	// RecordFn is called after each completion (for the ledger)
	RecordFn func(record usage.CompletionRecord)

	// SizeFn reports the payload size in bytes for ledger records (optional)
	SizeFn func(payload any) int64
}

// Worker processes items from a queue on one goroutine.
type Worker[T any] struct {
	queue     *queue.Queue[message.Timed[T]]
	transform Transform[T]
	sink      ResultSink[T]
	config    Config

	state     atomic.Int32
	processed atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a worker reading from q.
func New[T any](q *queue.Queue[message.Timed[T]], transform Transform[T], sink ResultSink[T], config Config) *Worker[T] {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.WorkerID == "" {
		config.WorkerID = "seqcipher-worker"
	}
	return &Worker[T]{
		queue:     q,
		transform: transform,
		sink:      sink,
		config:    config,
		done:      make(chan struct{}),
	}
}

// log outputs a message - uses activity callback if set, otherwise prints to stdout/stderr
func (w *Worker[T]) log(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if w.config.ActivityFn != nil {
		w.config.ActivityFn(level, msg)
		return
	}
	if level == "error" || level == "warning" {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	} else {
		fmt.Printf("%s\n", msg)
	}
}

// Start launches the worker goroutine. The worker runs until Stop is called
// or ctx is cancelled.
func (w *Worker[T]) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		w.setState(StateIdle)
		go w.run(ctx)
		err = nil
	})
	if err != nil && w.cancel == nil {
		return ErrStopped
	}
	return err
}

// Stop signals the worker to exit and waits until it has. An item being
// processed is finished first; items still queued are abandoned.
// Stop is idempotent and safe to call on a worker that never started.
func (w *Worker[T]) Stop() {
	w.stopOnce.Do(func() {
		// Prevent a later Start from launching the loop.
		w.startOnce.Do(func() {
			w.setState(StateTerminal)
			close(w.done)
		})
		if w.cancel != nil {
			w.setActive(StateStopping)
			w.cancel()
		}
	})
	<-w.done
}

// Wait blocks until the worker goroutine has exited.
func (w *Worker[T]) Wait() {
	<-w.done
}

// Done is closed once the worker goroutine has exited.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// State returns the current lifecycle state.
func (w *Worker[T]) State() State {
	return State(w.state.Load())
}

// Processed returns how many items the worker has completed.
func (w *Worker[T]) Processed() int64 {
	return w.processed.Load()
}

func (w *Worker[T]) setState(s State) {
	w.state.Store(int32(s))
}

// setActive moves to s unless a stop is already underway or complete.
func (w *Worker[T]) setActive(s State) {
	for {
		cur := w.state.Load()
		if State(cur) == StateStopping || State(cur) == StateTerminal {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (w *Worker[T]) run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(StateTerminal)

	w.log("info", "Worker %s started", w.config.WorkerID)

	for {
		// A stop requested while processing takes effect before the next pop,
		// even when more items are queued.
		if ctx.Err() != nil {
			break
		}

		w.setActive(StateIdle)
		item, err := w.queue.PopBlocking(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueCancelled) {
				w.log("error", "Worker %s: unexpected queue error: %v", w.config.WorkerID, err)
			}
			break
		}

		w.setActive(StateProcessing)
		w.process(ctx, item)
	}

	if n := w.queue.Len(); n > 0 {
		w.log("warning", "Worker %s stopped with %d item(s) still queued", w.config.WorkerID, n)
	}
	w.log("info", "Worker %s stopped after %d item(s)", w.config.WorkerID, w.processed.Load())
}

// process runs one item through the transform and delivers the result.
func (w *Worker[T]) process(ctx context.Context, pending message.Timed[T]) {
	// The in-flight item is finished even if a stop arrives meanwhile.
	payload, err := w.apply(context.WithoutCancel(ctx), pending.Item.Payload)

	completedAt := w.config.Clock()
	result := message.Timed[T]{
		Item:        pending.Item,
		SubmittedAt: pending.SubmittedAt,
		Elapsed:     completedAt.Sub(pending.SubmittedAt),
		Completed:   true,
	}
	if err != nil {
		result.Err = err
		w.log("error", "Item %s failed after %v: %v", pending.Key(), result.Elapsed, err)
	} else {
		result.Item = pending.Item.WithPayload(payload)
		w.log("success", "Item %s completed in %v", pending.Key(), result.Elapsed)
	}

	w.sink.Deliver(result)
	w.processed.Add(1)
	w.record(pending, result, completedAt)
}

// apply calls the transform, converting errors and panics into a tagged failure.
func (w *Worker[T]) apply(ctx context.Context, payload T) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransformFailure, r)
		}
	}()
	out, err = w.transform(ctx, payload)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}
	return out, err
}

// record hands a completion to the ledger callback, if any.
func (w *Worker[T]) record(pending, result message.Timed[T], completedAt time.Time) {
	if w.config.RecordFn == nil {
		return
	}
	r := usage.CompletionRecord{
		ItemKey:     result.Key().String(),
		WorkerID:    w.config.WorkerID,
		Status:      usage.StatusSuccess,
		SubmittedAt: result.SubmittedAt,
		CompletedAt: completedAt,
		ElapsedMs:   result.Elapsed.Milliseconds(),
	}
	if w.config.SizeFn != nil {
		r.InputBytes = w.config.SizeFn(pending.Item.Payload)
		r.OutputBytes = w.config.SizeFn(result.Item.Payload)
	}
	if result.Err != nil {
		r.Status = usage.StatusFailed
		msg := result.Err.Error()
		if len(msg) > 1024 {
			msg = msg[:1024]
		}
		r.ErrorMessage = msg
	}
	w.config.RecordFn(r)
}
