// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package broadcast provides a bounded multi-producer, multi-consumer
// broadcast channel.
//
// Every receiver observes every message sent after it subscribed, in send
// order. The channel retains only the most recent Capacity messages; a
// receiver that falls further behind gets a *LaggedError reporting how many
// messages it missed and then resumes from the oldest retained one.
// Senders never block on slow receivers.
//
// # Usage
//
//	ch := broadcast.New[string](15)
//	rx := ch.Subscribe()
//	defer rx.Close()
//
//	ch.Send("alice: hi\n")
//	msg, err := rx.Recv(ctx)
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the number of messages retained for lagging receivers.
const DefaultCapacity = 15

var (
	// ErrNoReceivers is returned by Send when nobody is subscribed.
	// The message is dropped.
	ErrNoReceivers = errors.New("broadcast: no active receivers")

	// ErrClosed is returned after the channel or the receiver is closed.
	ErrClosed = errors.New("broadcast: closed")
)

// LaggedError reports that a receiver fell behind and missed messages.
// The receiver has already been moved to the oldest retained message.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: receiver lagged, %d messages skipped", e.Skipped)
}

// =============================================================================
// CHANNEL
// =============================================================================

// Channel is a fixed-capacity ring of messages shared by all receivers.
type Channel[T any] struct {
	mu sync.Mutex

	// ring holds the last len(ring) messages, indexed by sequence % len(ring)
	ring []T

	// tail is the sequence number the next message will get
	tail uint64

	receivers int
	closed    bool

	// wake is closed and replaced on every send to release waiting receivers
	wake chan struct{}
}

// New creates a channel that retains capacity messages.
// It panics if capacity is not positive.
func New[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("broadcast: capacity must be positive, got %d", capacity))
	}
	return &Channel[T]{
		ring: make([]T, capacity),
		wake: make(chan struct{}),
	}
}

// Send publishes v to every current receiver and returns how many there are.
// It never blocks. With no receivers the message is dropped and
// ErrNoReceivers is returned.
func (c *Channel[T]) Send(v T) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	if c.receivers == 0 {
		return 0, ErrNoReceivers
	}

	c.ring[c.tail%uint64(len(c.ring))] = v
	c.tail++

	close(c.wake)
	c.wake = make(chan struct{})
	return c.receivers, nil
}

// Subscribe creates a receiver that observes messages sent from now on.
func (c *Channel[T]) Subscribe() *Receiver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.receivers++
	return &Receiver[T]{ch: c, next: c.tail}
}

// Close wakes all receivers. They drain what they have not yet seen and then
// get ErrClosed. Further sends fail with ErrClosed.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.wake)
}

// ReceiverCount returns the number of live receivers.
func (c *Channel[T]) ReceiverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receivers
}

// Sent returns the total number of messages accepted by Send.
func (c *Channel[T]) Sent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tail
}

// Capacity returns the number of retained messages.
func (c *Channel[T]) Capacity() int {
	return len(c.ring)
}

// =============================================================================
// RECEIVER
// =============================================================================

// Receiver reads messages from a Channel. A Receiver must be used by one
// goroutine at a time.
type Receiver[T any] struct {
	ch     *Channel[T]
	next   uint64
	closed bool
}

// Recv returns the next message, blocking until one is sent, ctx is done or
// the channel is closed. A *LaggedError means messages were skipped; the
// following Recv continues from the oldest retained message.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	c := r.ch
	for {
		c.mu.Lock()
		if r.closed {
			c.mu.Unlock()
			return zero, ErrClosed
		}

		capacity := uint64(len(c.ring))
		if c.tail > capacity && r.next < c.tail-capacity {
			oldest := c.tail - capacity
			skipped := oldest - r.next
			r.next = oldest
			c.mu.Unlock()
			return zero, &LaggedError{Skipped: skipped}
		}

		if r.next < c.tail {
			v := c.ring[r.next%capacity]
			r.next++
			c.mu.Unlock()
			return v, nil
		}

		if c.closed {
			c.mu.Unlock()
			return zero, ErrClosed
		}
		wake := c.wake
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len returns how many retained messages this receiver has not read yet.
func (r *Receiver[T]) Len() int {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.tail - r.next
	if capacity := uint64(len(c.ring)); pending > capacity {
		pending = capacity
	}
	return int(pending)
}

// Close unsubscribes the receiver. Close is idempotent.
func (r *Receiver[T]) Close() {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	c.receivers--
}
