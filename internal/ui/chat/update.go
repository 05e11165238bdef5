// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatty/internal/event"
	"github.com/jeranaias/chatty/internal/protocol"
)

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher advances a Model by one event at a time.
type Dispatcher struct {
	now  func() time.Time
	keys KeyMap
}

// NewDispatcher returns a Dispatcher that samples frame rate against now.
// A nil clock means time.Now.
func NewDispatcher(now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{now: now, keys: DefaultKeyMap()}
}

// Keys returns the bindings the dispatcher reacts to.
func (d *Dispatcher) Keys() KeyMap {
	return d.keys
}

// Update applies ev to m and returns the new model together with any
// commands for the main loop. It panics on an event type it does not know.
func (d *Dispatcher) Update(m Model, ev event.Event) (Model, []Command) {
	switch ev := ev.(type) {
	case event.KeyInput:
		return d.handleKey(m, ev.Key)

	case event.NetworkLine:
		m.Messages = appendBounded(m.Messages, ev.Text)

	case event.LogRecord:
		m.Logs = appendBounded(m.Logs, ev.Line)

	case event.Tick:
		m = d.sample(m, false)

	case event.Render:
		m = d.sample(m, true)

	case event.Error:
		// Reported through the log pipeline by the main loop.

	case event.Quit:
		return m, []Command{QuitCommand{}}

	default:
		panic(fmt.Sprintf("chat: unhandled event %T", ev))
	}
	return m, nil
}

func (d *Dispatcher) sample(m Model, render bool) Model {
	if fps, closed := m.fps.observe(d.now(), render); closed {
		m.FPS = fps
	}
	return m
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (d *Dispatcher) handleKey(m Model, k tea.KeyMsg) (Model, []Command) {
	// Raw mode swallows SIGINT, so ctrl+c is handled here in every state.
	if key.Matches(k, d.keys.ForceQuit) {
		return m, []Command{QuitCommand{}}
	}
	if !m.Registered {
		return d.handleRegisterKey(m, k)
	}
	if key.Matches(k, d.keys.SwitchView) {
		m.View = m.View.toggle()
		return m, nil
	}

	switch m.Mode {
	case ModeNormal:
		switch {
		case key.Matches(k, d.keys.Quit):
			return m, []Command{QuitCommand{}}
		case key.Matches(k, d.keys.Edit):
			if m.View == ViewChat {
				m.Mode = ModeEditing
			}
		}

	case ModeEditing:
		switch {
		case key.Matches(k, d.keys.Leave):
			m.Mode = ModeNormal
		case key.Matches(k, d.keys.Submit):
			text := m.Input.Value()
			m.Input.Reset()
			return m, []Command{SendCommand{Text: text}}
		default:
			m.Input, _ = m.Input.Update(k)
		}
	}
	return m, nil
}

// handleRegisterKey drives the username prompt.
func (d *Dispatcher) handleRegisterKey(m Model, k tea.KeyMsg) (Model, []Command) {
	switch m.Mode {
	case ModeNormal:
		switch {
		case key.Matches(k, d.keys.Quit):
			return m, []Command{QuitCommand{}}
		case key.Matches(k, d.keys.Edit):
			m.Mode = ModeEditing
		}

	case ModeEditing:
		switch {
		case key.Matches(k, d.keys.Leave):
			m.Mode = ModeNormal
		case key.Matches(k, d.keys.Submit):
			name := strings.TrimSpace(m.Input.Value())
			if name == "" {
				return m, nil
			}
			m.Registered = true
			m.Input.Reset()
			return m, []Command{SendCommand{Text: protocol.RegistrationPrefix + name}}
		default:
			m.Input, _ = m.Input.Update(k)
		}
	}
	return m, nil
}
