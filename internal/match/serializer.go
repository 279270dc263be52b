// Package match orchestrates live matches: it serializes action-apply
// cycles per match, runs the turn clock with strike escalation, watches
// disconnect grace windows, and invokes the AI engine when a turn times
// out. Per-match mutable state is owned by whoever holds that match's
// serializer slot; the clock and the supervisor only hold their own
// timer handles and re-enter mutation through the serializer.
package match

import (
	"context"
	"errors"
	"sync"
)

// ErrSerializerClosed is returned for work queued after the match's
// serializer has been shut down.
var ErrSerializerClosed = errors.New("match: serializer closed")

// Serializer executes queued functions for one match in strict
// submission order. It is a chained-channel rendition of a promise
// chain: every call parks on the completion channel of the call queued
// before it. Unrelated matches hold unrelated serializers and never
// contend.
type Serializer struct {
	mu     sync.Mutex
	tail   chan struct{} // closed when the most recently queued op finishes
	closed bool
}

// NewSerializer returns an empty queue.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Do runs fn after every previously queued operation for this match has
// finished. The slot is always released, even when fn returns an error
// or the context is cancelled while waiting, so one failed cycle can
// never deadlock the match.
func (q *Serializer) Do(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrSerializerClosed
	}
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// The abandoned slot is handed forward only once the
			// predecessor finishes, so successors keep their order.
			go func() {
				<-prev
				close(done)
			}()
			return ctx.Err()
		}
	}
	defer close(done)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Close rejects all future submissions. Operations already queued run
// to completion.
func (q *Serializer) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
