// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package event defines the closed set of events that drive the chat client.
//
// Every producer (terminal input, timers, the network pump and the log
// pipeline) pushes events into one unbounded queue. The main loop consumes
// them in arrival order and hands each to the dispatcher.
//
// # Key Types
//
//   - Event: sealed interface implemented only by the variants below
//   - Quit, Tick, Render: control and timer events
//   - KeyInput: a decoded key press
//   - NetworkLine: one line received from the server, newline stripped
//   - Error: an I/O failure reported by a producer
//   - LogRecord: a formatted client log line
//   - Sink: anything events can be pushed into
package event

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatty/internal/queue"
)

// Event is one input to the client state machine.
// The unexported marker method keeps the set of variants closed.
type Event interface {
	isEvent()
}

// Quit asks the client to stop.
type Quit struct{}

// Tick is emitted by the periodic tick timer.
type Tick struct{}

// Render is emitted by the frame timer; each one requests a redraw.
type Render struct{}

// KeyInput carries a single key press from the terminal.
type KeyInput struct {
	Key tea.KeyMsg
}

// NetworkLine carries one line of server text without its trailing newline.
type NetworkLine struct {
	Text string
}

// Error carries a failure reported by a producer.
type Error struct {
	Err error
}

// LogRecord carries one formatted log line destined for the Logs view.
type LogRecord struct {
	Line string
}

func (Quit) isEvent()        {}
func (Tick) isEvent()        {}
func (Render) isEvent()      {}
func (KeyInput) isEvent()    {}
func (NetworkLine) isEvent() {}
func (Error) isEvent()       {}
func (LogRecord) isEvent()   {}

// Sink accepts events from a producer. Push must not block.
// It returns false once the sink no longer accepts events.
type Sink interface {
	Push(Event) bool
}

// Queue is the unified event channel shared by all producers.
type Queue = queue.Unbounded[Event]

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	return queue.New[Event]()
}
