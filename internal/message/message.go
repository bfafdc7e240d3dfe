// Package message defines the values that flow through the processing pipeline.
//
// An Item is created by the producer, wrapped in a Timed envelope carrying its
// submission time, and replaced (never mutated) by a processed copy once the
// worker has run the transform over its payload.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Key identifies an item for its whole lifetime.
// It is only used to correlate a pending entry with its result, never for ordering.
type Key = uuid.UUID

// NewKey returns a fresh random Key.
func NewKey() Key {
	return uuid.New()
}

// Item is an immutable keyed payload.
type Item[T any] struct {
	Key     Key
	Payload T
}

// NewItem creates an item with a fresh key.
func NewItem[T any](payload T) Item[T] {
	return Item[T]{Key: NewKey(), Payload: payload}
}

// WithPayload returns a copy of the item carrying payload under the same key.
func (i Item[T]) WithPayload(payload T) Item[T] {
	return Item[T]{Key: i.Key, Payload: payload}
}

// Timed pairs an item with its timing information.
//
// SubmittedAt is set by the producer when the item is enqueued. Elapsed is
// zero while the item is pending and holds the full queue + processing
// duration once the worker has completed it.
type Timed[T any] struct {
	Item        Item[T]
	SubmittedAt time.Time
	Elapsed     time.Duration

	// Completed is set by the worker on the result it delivers.
	Completed bool

	// Err is non-nil when the transform failed for this item.
	Err error
}

// Pending wraps item as a freshly submitted, not yet processed value.
func Pending[T any](item Item[T], submittedAt time.Time) Timed[T] {
	return Timed[T]{Item: item, SubmittedAt: submittedAt}
}

// Key returns the key of the wrapped item.
func (t Timed[T]) Key() Key {
	return t.Item.Key
}

// Failed reports whether the item completed with a transform failure.
func (t Timed[T]) Failed() bool {
	return t.Completed && t.Err != nil
}

// TimestampMillis returns the submission wall-clock time in milliseconds while
// the item is pending and the elapsed duration in milliseconds once completed.
func (t Timed[T]) TimestampMillis() int64 {
	if t.Completed {
		return t.Elapsed.Milliseconds()
	}
	return t.SubmittedAt.UnixMilli()
}
