// Package board holds the presentation-side list of submitted items.
//
// A Board is not safe for concurrent use. It must only be touched from the
// single serial context that owns the presentation (the TUI event loop), which
// is where both pending inserts and completed updates are applied.
package board

import (
	"errors"
	"fmt"

	"github.com/aceteam-ai/seqcipher/internal/message"
)

var (
	// ErrIdentityNotFound means a result arrived for a key that has no entry.
	// The producer and the sink disagree about the item lifecycle; this is a
	// programming error and is never retried.
	ErrIdentityNotFound = errors.New("no entry for item key")

	// ErrDuplicateIdentity means a pending entry was inserted twice.
	ErrDuplicateIdentity = errors.New("entry already exists for item key")
)

// Board is an ordered list with exactly one entry per item key.
type Board[T any] struct {
	rows  []message.Timed[T]
	index map[message.Key]int
}

// New creates an empty board.
func New[T any]() *Board[T] {
	return &Board[T]{index: make(map[message.Key]int)}
}

// InsertPending appends a pending entry and returns its row index.
func (b *Board[T]) InsertPending(t message.Timed[T]) (int, error) {
	key := t.Key()
	if _, ok := b.index[key]; ok {
		return -1, fmt.Errorf("%w: %s", ErrDuplicateIdentity, key)
	}
	b.rows = append(b.rows, t)
	i := len(b.rows) - 1
	b.index[key] = i
	return i, nil
}

// ApplyUpdate replaces the entry with the same key in place and returns its
// row index. The row is left untouched when the key is unknown.
func (b *Board[T]) ApplyUpdate(t message.Timed[T]) (int, error) {
	key := t.Key()
	i, ok := b.index[key]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrIdentityNotFound, key)
	}
	b.rows[i] = t
	return i, nil
}

// Get returns the entry for key.
func (b *Board[T]) Get(key message.Key) (message.Timed[T], bool) {
	i, ok := b.index[key]
	if !ok {
		return message.Timed[T]{}, false
	}
	return b.rows[i], true
}

// Rows returns a copy of the entries in insertion order.
func (b *Board[T]) Rows() []message.Timed[T] {
	out := make([]message.Timed[T], len(b.rows))
	copy(out, b.rows)
	return out
}

// Len returns the number of entries.
func (b *Board[T]) Len() int {
	return len(b.rows)
}

// PendingCount returns the number of entries not yet completed.
func (b *Board[T]) PendingCount() int {
	n := 0
	for _, r := range b.rows {
		if !r.Completed {
			n++
		}
	}
	return n
}

// CompletedCount returns the number of completed entries, failures included.
func (b *Board[T]) CompletedCount() int {
	return len(b.rows) - b.PendingCount()
}
