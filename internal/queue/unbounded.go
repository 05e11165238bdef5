// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue provides an unbounded multi-producer FIFO queue.
//
// Producers never block: Push appends under a mutex and signals a waiting
// consumer. Consumers block in Pop until an item arrives, the context is
// done, or the queue is closed and drained.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Pop once the queue is closed and every queued item
// has been delivered.
var ErrClosed = errors.New("queue closed")

// =============================================================================
// UNBOUNDED QUEUE
// =============================================================================

// Unbounded is a FIFO queue with no capacity limit.
// The zero value is not usable; create queues with New.
type Unbounded[T any] struct {
	// items holds queued values in arrival order
	items []T

	// ready carries at most one pending wakeup for blocked consumers
	ready chan struct{}

	// closed rejects further pushes once set
	closed bool

	// mu protects items and closed
	mu sync.Mutex
}

// New creates an empty queue.
func New[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		items: make([]T, 0, 16),
		ready: make(chan struct{}, 1),
	}
}

// Push appends v to the queue. It never blocks.
// Returns false if the queue has been closed.
func (q *Unbounded[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	q.signal()
	return true
}

// Pop removes and returns the oldest item, blocking until one is available.
// Returns ErrClosed when the queue is closed and empty, or the context error
// if ctx is done first.
func (q *Unbounded[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok, closed := q.take(); ok {
			return v, nil
		} else if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop removes and returns the oldest item without blocking.
func (q *Unbounded[T]) TryPop() (T, bool) {
	v, ok, _ := q.take()
	return v, ok
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting new items. Items already queued can
// still be popped. Close is idempotent.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}

// take pops the head item if present. The caller must not hold mu.
func (q *Unbounded[T]) take() (v T, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false, q.closed
	}

	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	// Hand the wakeup on so another consumer sees the remaining items.
	if len(q.items) > 0 {
		q.signal()
	}
	return v, true, q.closed
}

// signal records a pending wakeup. The caller must hold mu.
func (q *Unbounded[T]) signal() {
	if q.closed {
		return
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
