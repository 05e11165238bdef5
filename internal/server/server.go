// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatty/internal/broadcast"
	"github.com/jeranaias/chatty/internal/protocol"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// acceptBackoffMin and acceptBackoffMax bound the sleep after a
	// temporary Accept failure such as running out of file descriptors.
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

// ErrServerClosed is returned by Serve after Shutdown or context cancellation.
var ErrServerClosed = errors.New("server closed")

// ============================================================================
// SERVER
// ============================================================================

// Server accepts chat connections and relays their messages.
type Server struct {
	addr    string
	maxLine int

	// messageRate and burst configure the per-connection inbound limiter;
	// a zero rate disables limiting
	messageRate rate.Limit
	burst       int

	logger    *zap.Logger
	directory *Directory
	messages  *broadcast.Channel[string]

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// New creates a Server that will listen on addr.
// If addr is empty, protocol.DefaultAddr is used.
func New(addr string) *Server {
	if addr == "" {
		addr = protocol.DefaultAddr
	}

	return &Server{
		addr:      addr,
		maxLine:   protocol.DefaultMaxLineLength,
		logger:    zap.NewNop(),
		directory: NewDirectory(),
		messages:  broadcast.New[string](broadcast.DefaultCapacity),
		conns:     make(map[net.Conn]struct{}),
	}
}

// WithLogger sets the server logger.
func (s *Server) WithLogger(logger *zap.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithCapacity sets how many messages the broadcast channel retains for
// lagging receivers. Must be called before Serve.
func (s *Server) WithCapacity(capacity int) *Server {
	if capacity > 0 {
		s.messages = broadcast.New[string](capacity)
	}
	return s
}

// WithMaxLineLength sets the longest accepted line in bytes, newline included.
func (s *Server) WithMaxLineLength(n int) *Server {
	if n > 0 {
		s.maxLine = n
	}
	return s
}

// WithRateLimit limits how many lines per second each connection may
// publish, allowing bursts of up to burst lines. A non-positive rate
// disables limiting.
func (s *Server) WithRateLimit(perSecond float64, burst int) *Server {
	if perSecond <= 0 {
		s.messageRate = 0
		return s
	}
	if burst < 1 {
		burst = 1
	}
	s.messageRate = rate.Limit(perSecond)
	s.burst = burst
	return s
}

// Directory returns the shared directory of registered users.
func (s *Server) Directory() *Directory {
	return s.directory
}

// Addr returns the bound address once serving, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ListenAndServe binds the configured address and serves until ctx is done
// or Shutdown is called. A bind failure is a *protocol.ConnectionError.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return &protocol.ConnectionError{Op: "listen", Addr: s.addr, Err: err}
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called,
// then closes every open connection and waits for their goroutines.
// It always returns a non-nil error; ErrServerClosed after a clean stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server already serving")
	}
	s.listener = ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("SERVER_START",
		zap.String("addr", ln.Addr().String()),
		zap.Int("capacity", s.messages.Capacity()),
		zap.Int("max_line", s.maxLine))

	err := s.acceptLoop(ctx, ln)

	cancel()
	s.closeConns()
	s.wg.Wait()

	s.logger.Info("SERVER_STOP", zap.Uint64("relayed", s.messages.Sent()))
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosing() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("ACCEPT_RETRY", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting, closes every connection and waits for their
// goroutines to finish or ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.mu.Unlock()

	s.logger.Info("SERVER_SHUTDOWN", zap.Strings("users", s.directory.Names()))

	if ln != nil {
		ln.Close()
	}
	s.closeConns()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.messages.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================================
// CONNECTION TRACKING
// ============================================================================

// track registers conn and adds it to the wait group under the same lock
// Shutdown takes, so no connection goroutine starts after Shutdown waits.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return acceptBackoffMin
	}
	d *= 2
	if d > acceptBackoffMax {
		d = acceptBackoffMax
	}
	return d
}
