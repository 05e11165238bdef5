// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package network connects the chat client to the server.
//
// Dial opens the TCP connection and starts the pump: one goroutine turns
// each received line into an event.NetworkLine, another drains the outgoing
// queue onto the socket. Either side failing, or the server closing the
// connection, stops both. There is no reconnection.
package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/chatty/internal/event"
	"github.com/jeranaias/chatty/internal/protocol"
	"github.com/jeranaias/chatty/internal/queue"
)

// ErrClosed is returned by Send after the pump has stopped.
var ErrClosed = errors.New("network: connection closed")

// ErrSessionEnded is wrapped by the event.Error the pump pushes when it
// stops on its own: the server closed the connection or I/O failed.
// Close and cancellation of the Dial context push nothing.
var ErrSessionEnded = errors.New("network: session ended")

// errPeerClosed ends the pump when the server closes the connection.
var errPeerClosed = errors.New("server closed connection")

// DefaultDialTimeout bounds the initial TCP connect.
const DefaultDialTimeout = 5 * time.Second

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the pump logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxLineLength caps received lines in bytes, newline included.
func WithMaxLineLength(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxLine = n
		}
	}
}

// WithDialTimeout bounds the initial connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// =============================================================================
// CONN
// =============================================================================

// Conn is a pumped connection to the chat server.
type Conn struct {
	addr        string
	maxLine     int
	dialTimeout time.Duration
	logger      *zap.Logger

	conn     net.Conn
	sink     event.Sink
	outgoing *queue.Unbounded[string]

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Dial connects to addr and starts pumping lines into sink. A connect
// failure is returned as a *protocol.ConnectionError. The pump runs until
// ctx is done, Close is called, the server closes the connection, or an
// I/O error occurs.
func Dial(ctx context.Context, addr string, sink event.Sink, opts ...Option) (*Conn, error) {
	c := &Conn{
		addr:        addr,
		maxLine:     protocol.DefaultMaxLineLength,
		dialTimeout: DefaultDialTimeout,
		logger:      zap.NewNop(),
		sink:        sink,
		outgoing:    queue.New[string](),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &protocol.ConnectionError{Op: "dial", Addr: addr, Err: err}
	}
	c.conn = conn
	c.logger.Info("Connected to server", zap.String("addr", addr))

	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	return c, nil
}

// Send queues one line of text for the server. The newline is added by the
// pump. Send never blocks.
func (c *Conn) Send(text string) error {
	if !c.outgoing.Push(text) {
		return ErrClosed
	}
	return nil
}

// Done is closed when the pump has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the pump stopped: nil if the server closed the connection
// or the pump was closed, otherwise the I/O error. Valid after Done.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close stops the pump and waits for it.
func (c *Conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// =============================================================================
// PUMP
// =============================================================================

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { c.conn.Close() })
	defer stop()

	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })

	err := g.Wait()
	c.conn.Close()
	c.outgoing.Close()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		c.logger.Info("Disconnected from server", zap.String("addr", c.addr))
	case errors.Is(err, errPeerClosed):
		c.logger.Info("Server closed the connection", zap.String("addr", c.addr))
		c.sink.Push(event.Error{Err: fmt.Errorf("%w: %w", ErrSessionEnded, err)})
	default:
		c.err = err
		c.sink.Push(event.Error{Err: fmt.Errorf("%w: %w", ErrSessionEnded, err)})
	}
}

func (c *Conn) readLoop(ctx context.Context) error {
	r := bufio.NewReader(c.conn)
	for {
		line, err := protocol.ReadLine(r, c.maxLine)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errPeerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read from %s: %w", c.addr, err)
		}
		c.sink.Push(event.NetworkLine{Text: protocol.TrimLine(line)})
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		text, err := c.outgoing.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}

		// Lines queued behind this one go out in the same write.
		var buf strings.Builder
		buf.WriteString(text)
		buf.WriteByte('\n')
		lines := 1
		for {
			next, ok := c.outgoing.TryPop()
			if !ok {
				break
			}
			buf.WriteString(next)
			buf.WriteByte('\n')
			lines++
		}

		if _, err := io.WriteString(c.conn, buf.String()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write to %s: %w", c.addr, err)
		}
		c.logger.Debug("Sent lines", zap.Int("lines", lines), zap.Int("bytes", buf.Len()))
	}
}
