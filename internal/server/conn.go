// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatty/internal/broadcast"
	"github.com/jeranaias/chatty/internal/protocol"
)

// errPeerClosed ends a relay when the client closes its side.
var errPeerClosed = errors.New("peer closed connection")

// ============================================================================
// CONNECTION REGISTRAR
// ============================================================================

// handleConn runs one connection from handshake to teardown.
// The directory entry and broadcast receiver exist only between a successful
// registration and the return of this function.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	identity := conn.RemoteAddr().String()
	log := s.logger.With(
		zap.String("peer", identity),
		zap.String("session", uuid.NewString()))
	log.Debug("CONN_ACCEPT")

	r := bufio.NewReader(conn)
	line, err := protocol.ReadLine(r, s.maxLine)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			log.Debug("CONN_CLOSED", zap.String("reason", "closed before registration"))
		case errors.Is(err, protocol.ErrProtocol):
			log.Warn("PROTOCOL_ERROR", zap.Error(err))
		default:
			log.Warn("READ_ERROR", zap.Error(err))
		}
		return
	}

	name, err := protocol.ParseRegistration(line)
	if err != nil {
		log.Warn("PROTOCOL_ERROR", zap.Error(err))
		return
	}

	s.directory.Insert(identity, name)
	defer s.directory.Remove(identity)

	sub := s.messages.Subscribe()
	defer sub.Close()

	log = log.With(zap.String("user", name))
	log.Info("USER_REGISTERED",
		zap.Int("online", s.directory.Len()),
		zap.Int("receivers", s.messages.ReceiverCount()))

	if _, err := io.WriteString(conn, protocol.Welcome(name)); err != nil {
		log.Warn("WRITE_ERROR", zap.Error(err))
		return
	}

	var limiter *rate.Limiter
	if s.messageRate > 0 {
		limiter = rate.NewLimiter(s.messageRate, s.burst)
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { conn.Close() })
	defer stop()

	g.Go(func() error { return s.relayInbound(gctx, log, identity, r, limiter) })
	g.Go(func() error { return s.relayOutbound(gctx, log, conn, sub) })

	err = g.Wait()
	switch {
	case errors.Is(err, errPeerClosed):
		log.Info("CONN_CLOSED", zap.String("reason", "peer closed"))
	case errors.Is(err, context.Canceled):
		log.Info("CONN_CLOSED", zap.String("reason", "server stopping"))
	default:
		log.Warn("CONN_CLOSED", zap.Error(err))
	}
}

// ============================================================================
// BROADCAST FAN-OUT
// ============================================================================

// relayInbound publishes each non-blank line the client sends.
func (s *Server) relayInbound(ctx context.Context, log *zap.Logger, identity string, r *bufio.Reader, limiter *rate.Limiter) error {
	for {
		line, err := protocol.ReadLine(r, s.maxLine)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errPeerClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if protocol.IsBlank(line) {
			continue
		}

		name, ok := s.directory.Lookup(identity)
		if !ok {
			log.Error("DIRECTORY_MISS", zap.String("reason", "registered connection has no directory entry"))
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		n, err := s.messages.Send(protocol.Relay(name, line))
		switch {
		case errors.Is(err, broadcast.ErrNoReceivers):
			log.Debug("BROADCAST_DROPPED", zap.Error(err))
		case err != nil:
			return err
		default:
			log.Debug("MESSAGE_RELAYED", zap.Int("receivers", n), zap.Int("bytes", len(line)))
		}
	}
}

// relayOutbound writes every broadcast message to the client verbatim.
// Falling behind the channel skips the missed messages and carries on.
func (s *Server) relayOutbound(ctx context.Context, log *zap.Logger, conn net.Conn, sub *broadcast.Receiver[string]) error {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			var lagged *broadcast.LaggedError
			if errors.As(err, &lagged) {
				log.Warn("RECEIVER_LAGGED", zap.Uint64("skipped", lagged.Skipped))
				continue
			}
			return err
		}

		if _, err := io.WriteString(conn, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write: %w", err)
		}
	}
}
