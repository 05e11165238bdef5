// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui owns the terminal for the chat client and multiplexes its
// event sources.
//
// Open switches the terminal to raw mode and the alternate screen and starts
// three producers feeding one unbounded event queue: a key reader, a tick
// timer and a render timer. Other producers (the network pump, the log
// pipeline) push into the same queue through Push. Close stops the producers
// and restores the terminal; callers defer it so the terminal is restored on
// every exit path, panics included.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/jeranaias/chatty/internal/event"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTickRate is the period of Tick events (4 Hz).
	DefaultTickRate = 250 * time.Millisecond

	// DefaultFrameRate is the period of Render events (~30 Hz).
	DefaultFrameRate = time.Second / 30

	// Fallback dimensions when the output is not a terminal.
	defaultWidth  = 80
	defaultHeight = 24
)

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Terminal.
type Option func(*Terminal)

// WithTickRate sets the Tick period.
func WithTickRate(d time.Duration) Option {
	return func(t *Terminal) {
		if d > 0 {
			t.tickRate = d
		}
	}
}

// WithFrameRate sets the Render period.
func WithFrameRate(d time.Duration) Option {
	return func(t *Terminal) {
		if d > 0 {
			t.frameRate = d
		}
	}
}

// WithInput reads keys from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(t *Terminal) { t.in = r }
}

// WithOutput draws to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(t *Terminal) { t.out = w }
}

// =============================================================================
// TERMINAL
// =============================================================================

// Terminal is the client's exclusive handle on the terminal and its event
// queue.
type Terminal struct {
	in  io.Reader
	out io.Writer

	tickRate  time.Duration
	frameRate time.Duration

	// inFd/outFd are valid when in/out are terminals
	inFd, outFd int
	inTTY       bool
	outTTY      bool
	saved       *term.State

	output *termenv.Output
	reader cancelreader.CancelReader
	events *event.Queue

	cancel    context.CancelFunc
	timers    *errgroup.Group
	inputDone chan struct{}

	lastFrame string
	closeOnce sync.Once
	closeErr  error
}

// Open takes over the terminal and starts the event producers.
func Open(opts ...Option) (*Terminal, error) {
	t := &Terminal{
		in:        os.Stdin,
		out:       os.Stdout,
		tickRate:  DefaultTickRate,
		frameRate: DefaultFrameRate,
		events:    event.NewQueue(),
		inputDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if f, ok := t.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.inFd, t.inTTY = int(f.Fd()), true
	}
	if f, ok := t.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.outFd, t.outTTY = int(f.Fd()), true
	}

	if t.inTTY {
		state, err := term.MakeRaw(t.inFd)
		if err != nil {
			return nil, fmt.Errorf("failed to enable raw mode: %w", err)
		}
		t.saved = state
	}

	reader, err := cancelreader.NewReader(t.in)
	if err != nil {
		t.restoreMode()
		return nil, fmt.Errorf("failed to open input reader: %w", err)
	}
	t.reader = reader

	t.output = termenv.NewOutput(t.out)
	t.output.AltScreen()
	t.output.HideCursor()
	t.output.ClearScreen()

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.timers, ctx = errgroup.WithContext(ctx)

	go t.readInput()
	t.timers.Go(func() error { return t.produce(ctx, t.tickRate, event.Tick{}) })
	t.timers.Go(func() error { return t.produce(ctx, t.frameRate, event.Render{}) })

	return t, nil
}

// Next returns the next event in arrival order. It returns queue.ErrClosed
// once the terminal is closed and every queued event has been consumed.
func (t *Terminal) Next(ctx context.Context) (event.Event, error) {
	return t.events.Pop(ctx)
}

// Push injects an event from another producer. It never blocks and reports
// false after Close.
func (t *Terminal) Push(ev event.Event) bool {
	return t.events.Push(ev)
}

// Size returns the output dimensions in cells.
func (t *Terminal) Size() (width, height int) {
	if t.outTTY {
		if w, h, err := term.GetSize(t.outFd); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultWidth, defaultHeight
}

// Draw replaces the screen contents with frame. Identical consecutive frames
// are not redrawn.
func (t *Terminal) Draw(frame string) error {
	if frame == t.lastFrame {
		return nil
	}
	t.lastFrame = frame

	var b strings.Builder
	b.WriteString(fmt.Sprintf(termenv.CSI+termenv.CursorPositionSeq, 1, 1))
	lines := strings.Split(frame, "\n")
	for i, line := range lines {
		b.WriteString(line)
		b.WriteString(termenv.CSI + termenv.EraseLineRightSeq)
		if i < len(lines)-1 {
			// Raw mode disables output post-processing, so move to column 1
			// explicitly.
			b.WriteString("\r\n")
		}
	}
	b.WriteString(fmt.Sprintf(termenv.CSI+termenv.EraseDisplaySeq, 0))

	_, err := io.WriteString(t.out, b.String())
	return err
}

// Close stops all producers, closes the event queue and restores the
// terminal. It is safe to call more than once.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		canceled := t.reader.Cancel()
		_ = t.timers.Wait()
		if canceled {
			<-t.inputDone
		}
		t.events.Close()

		t.output.ExitAltScreen()
		t.output.ShowCursor()

		var errs []error
		if err := t.reader.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := t.restoreMode(); err != nil {
			errs = append(errs, err)
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

func (t *Terminal) restoreMode() error {
	if t.saved == nil {
		return nil
	}
	if err := term.Restore(t.inFd, t.saved); err != nil {
		return fmt.Errorf("failed to restore terminal: %w", err)
	}
	t.saved = nil
	return nil
}

// =============================================================================
// PRODUCERS
// =============================================================================

// readInput turns raw bytes into KeyInput events until the reader is
// canceled or reaches EOF. Other read failures are reported as Error events.
func (t *Terminal) readInput() {
	defer close(t.inputDone)

	buf := make([]byte, 256)
	for {
		n, err := t.reader.Read(buf)
		for _, k := range DecodeKeys(buf[:n]) {
			t.events.Push(event.KeyInput{Key: k})
		}
		if err != nil {
			if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
				t.events.Push(event.Error{Err: fmt.Errorf("terminal input: %w", err)})
			}
			return
		}
	}
}

// produce emits ev every period. time.Ticker drops firings the consumer
// missed, so at most one is pending.
func (t *Terminal) produce(ctx context.Context, period time.Duration, ev event.Event) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.events.Push(ev)
		}
	}
}
