// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app runs the terminal chat client.
//
// Run takes over the terminal, starts the client logger and the network
// pump, then feeds every event through the chat dispatcher until the user
// quits. Each Render event draws a frame. The terminal is restored on every
// exit path.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatty/internal/event"
	"github.com/jeranaias/chatty/internal/logging"
	"github.com/jeranaias/chatty/internal/network"
	"github.com/jeranaias/chatty/internal/queue"
	"github.com/jeranaias/chatty/internal/tui"
	"github.com/jeranaias/chatty/internal/ui/chat"
	"github.com/jeranaias/chatty/internal/ui/styles"
	"github.com/jeranaias/chatty/internal/ui/view"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a client run.
type Options struct {
	Addr          string
	Username      string
	TickRate      time.Duration
	FrameRate     time.Duration
	MaxLineLength int
	LogLevel      string
	LogFile       string
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the client and blocks until the user quits or ctx is done.
// A failure to reach the server is returned as a *protocol.ConnectionError
// after the terminal has been restored.
func Run(ctx context.Context, opts Options) (err error) {
	term, err := tui.Open(tui.WithTickRate(opts.TickRate), tui.WithFrameRate(opts.FrameRate))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := term.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	logger, closeLog, err := logging.NewClient(term, opts.LogLevel, opts.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
		_ = closeLog()
	}()

	conn, err := network.Dial(ctx, opts.Addr, term,
		network.WithLogger(logger),
		network.WithMaxLineLength(opts.MaxLineLength),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	model := chat.New().WithUsername(opts.Username)
	return NewLoop(term, conn, logger, model).Run(ctx)
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Screen is the event source and drawing surface of the loop.
type Screen interface {
	Next(ctx context.Context) (event.Event, error)
	Draw(frame string) error
	Size() (width, height int)
}

// Sender writes lines to the server.
type Sender interface {
	Send(text string) error
}

// Loop owns the Model and drives it from the Screen's events.
type Loop struct {
	screen     Screen
	conn       Sender
	logger     *zap.Logger
	dispatcher *chat.Dispatcher
	renderer   *view.Renderer
	model      chat.Model
}

// NewLoop returns a Loop starting from model.
func NewLoop(screen Screen, conn Sender, logger *zap.Logger, model chat.Model) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := chat.NewDispatcher(time.Now)
	return &Loop{
		screen:     screen,
		conn:       conn,
		logger:     logger,
		dispatcher: d,
		renderer:   view.New(styles.NewTheme(), d.Keys()),
		model:      model,
	}
}

// Model returns the current state.
func (l *Loop) Model() chat.Model {
	return l.model
}

// Run processes events until a quit command, the end of the event stream,
// cancellation of ctx or the end of the network session. A failed draw and
// a session the server or the network ended are returned as errors.
func (l *Loop) Run(ctx context.Context) error {
	for {
		ev, err := l.screen.Next(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if e, ok := ev.(event.Error); ok {
			l.logger.Error("Client error", zap.Error(e.Err))
			if errors.Is(e.Err, network.ErrSessionEnded) {
				return e.Err
			}
		}

		var cmds []chat.Command
		l.model, cmds = l.dispatcher.Update(l.model, ev)

		if _, ok := ev.(event.Render); ok {
			w, h := l.screen.Size()
			if err := l.screen.Draw(l.renderer.Render(l.model, w, h)); err != nil {
				return fmt.Errorf("failed to draw frame: %w", err)
			}
		}

		for _, cmd := range cmds {
			switch cmd := cmd.(type) {
			case chat.SendCommand:
				if err := l.conn.Send(cmd.Text); err != nil {
					l.logger.Warn("Message not sent", zap.Error(err))
				}
			case chat.QuitCommand:
				l.logger.Debug("Quit requested")
				return nil
			}
		}
	}
}
