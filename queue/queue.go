// Package queue provides an asynchronous FIFO hand-off queue.
package queue

import (
	"context"
	"sync"
)

// Queue is an order-preserving hand-off queue. Values are delivered to waiters
// in the order the waiters arrived; when nobody waits, values are buffered.
//
// Seeded with a single value, Queue doubles as a binary mutex whose token
// changes hands in strict FIFO order.
type Queue[T any] struct {
	mu      sync.Mutex
	values  []T
	waiters []chan T
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue hands v to the oldest pending waiter, or buffers it when there is none.
// It never blocks.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		w <- v // buffered with capacity 1, never blocks
		return
	}

	q.values = append(q.values, v)
}

// Dequeue returns the oldest buffered value, or waits until Enqueue provides one.
//
// If ctx is done before a value arrives, the waiter is withdrawn and ctx.Err() is returned.
// A value that was handed over concurrently with cancellation is returned instead of
// the context error, so a value is never lost.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	q.mu.Lock()
	if len(q.values) > 0 {
		v := q.values[0]
		var zero T
		q.values[0] = zero
		q.values = q.values[1:]
		q.mu.Unlock()
		return v, nil
	}

	w := make(chan T, 1)
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case v := <-w:
		return v, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	withdrawn := q.withdraw(w)
	q.mu.Unlock()

	if !withdrawn {
		// Enqueue already picked this waiter.
		return <-w, nil
	}

	var zero T
	return zero, ctx.Err()
}

// withdraw removes w from the waiters list. Must be called with mu held.
func (q *Queue[T]) withdraw(w chan T) bool {
	for i, c := range q.waiters {
		if c == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of buffered values.
// The snapshot is advisory and may be stale by the time it is used.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.values)
}

// Waiting returns the number of pending Dequeue calls.
// The snapshot is advisory and may be stale by the time it is used.
func (q *Queue[T]) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
