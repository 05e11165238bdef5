// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
)

// =============================================================================
// INPUT MODE
// =============================================================================

// InputMode is whether keys edit the input line or drive the UI.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeEditing
)

// String returns the mode name shown in the status bar.
func (m InputMode) String() string {
	if m == ModeEditing {
		return "Editing"
	}
	return "Normal"
}

// =============================================================================
// ACTIVE VIEW
// =============================================================================

// ActiveView selects the main panel.
type ActiveView int

const (
	ViewChat ActiveView = iota
	ViewLogs
)

// Title returns the tab label.
func (v ActiveView) Title() string {
	if v == ViewLogs {
		return "Logs"
	}
	return "Chat"
}

func (v ActiveView) toggle() ActiveView {
	if v == ViewChat {
		return ViewLogs
	}
	return ViewChat
}

// Views lists the tabs in display order.
var Views = []ActiveView{ViewChat, ViewLogs}

// =============================================================================
// MODEL
// =============================================================================

const (
	// MaxInputLength caps the pending input in runes.
	MaxInputLength = 1000

	// historyLimit bounds Messages and Logs; older entries are dropped.
	historyLimit = 5000
)

// Model is the client's application state. Only Dispatcher.Update changes it.
type Model struct {
	Mode       InputMode
	Registered bool
	Input      textinput.Model
	Messages   []string
	Logs       []string
	View       ActiveView
	FPS        int

	fps fpsSampler
}

// New returns the initial state: unregistered, editing the username, on the
// Chat view.
func New() Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = MaxInputLength
	in.Cursor.SetMode(cursor.CursorStatic)
	in.Focus()

	return Model{
		Mode:  ModeEditing,
		Input: in,
		View:  ViewChat,
	}
}

// WithUsername pre-fills the username prompt. It has no effect once
// registered.
func (m Model) WithUsername(name string) Model {
	if m.Registered || name == "" {
		return m
	}
	m.Input.SetValue(name)
	m.Input.CursorEnd()
	return m
}

func appendBounded(lines []string, line string) []string {
	lines = append(lines, line)
	if over := len(lines) - historyLimit; over > 0 {
		lines = append(lines[:0:0], lines[over:]...)
	}
	return lines
}
