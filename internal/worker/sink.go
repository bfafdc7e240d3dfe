package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/queue"
)

// ResultSink receives completed items from the worker.
//
// Deliver is called on the worker goroutine and must not block on the
// consumer: implementations hand the result over to whatever serial context
// owns the presentation state and return.
type ResultSink[T any] interface {
	Deliver(result message.Timed[T])
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc[T any] func(result message.Timed[T])

// Deliver calls f(result).
func (f SinkFunc[T]) Deliver(result message.Timed[T]) {
	f(result)
}

// ChannelSink delivers results into a channel that the owning event loop
// reads from. The channel must be buffered or drained promptly.
type ChannelSink[T any] chan message.Timed[T]

// Deliver sends result on the channel.
func (c ChannelSink[T]) Deliver(result message.Timed[T]) {
	c <- result
}

// AsyncSink decouples the worker from a sink that may block.
//
// Results are buffered in an unbounded queue and forwarded to the inner sink,
// in delivery order, by a dedicated goroutine. Deliver never blocks.
type AsyncSink[T any] struct {
	inner   ResultSink[T]
	pending *queue.Queue[message.Timed[T]]
	done    chan struct{}
	once    sync.Once
}

// NewAsyncSink starts forwarding to inner. Call Close to stop it.
func NewAsyncSink[T any](inner ResultSink[T]) *AsyncSink[T] {
	s := &AsyncSink[T]{
		inner:   inner,
		pending: queue.New[message.Timed[T]](),
		done:    make(chan struct{}),
	}
	go s.forward()
	return s
}

// Deliver enqueues result for forwarding.
func (s *AsyncSink[T]) Deliver(result message.Timed[T]) {
	s.pending.Push(result)
}

// Close stops accepting results, forwards what is already buffered, and
// waits for the forwarding goroutine to exit.
func (s *AsyncSink[T]) Close() {
	s.once.Do(s.pending.Close)
	<-s.done
}

func (s *AsyncSink[T]) forward() {
	defer close(s.done)
	ctx := context.Background()
	for {
		result, err := s.pending.PopBlocking(ctx)
		if errors.Is(err, queue.ErrQueueCancelled) {
			return
		}
		s.inner.Deliver(result)
	}
}

var (
	_ ResultSink[string] = SinkFunc[string](nil)
	_ ResultSink[string] = ChannelSink[string](nil)
	_ ResultSink[string] = (*AsyncSink[string])(nil)
)
