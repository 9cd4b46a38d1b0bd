// Package bus provides the single-consumer queue that serializes the three
// broker callback streams (quotes, trades, trade updates) into one ordered
// dispatch loop. With a single consumer, strategy state and the order registry
// need no locking in event handlers.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrQueueClosed = errors.New("event queue closed")

type Queue[T any] struct {
	ch     chan T
	closed atomic.Bool
}

func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Publish enqueues an event, blocking while the queue is full. Blocking the
// producer preserves arrival order; events are never dropped or coalesced.
func (q *Queue[T]) Publish(ctx context.Context, v T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- v:
		return nil
	}
}

// Close stops the queue from accepting new events. Run drains what remains.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Run consumes events one at a time until the context is done or the queue is
// closed and drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-q.ch:
			if !ok {
				return
			}
			handler(v)
		}
	}
}
