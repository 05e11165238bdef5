// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the chat client.
type KeyMap struct {
	Quit       key.Binding
	ForceQuit  key.Binding
	Edit       key.Binding
	Leave      key.Binding
	Submit     key.Binding
	SwitchView key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit"),
		),
		Leave: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop editing"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		SwitchView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch view"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// HelpContext is the UI state that decides which bindings are shown.
type HelpContext string

const (
	ContextRegister HelpContext = "register"
	ContextNormal   HelpContext = "normal"
	ContextEditing  HelpContext = "editing"
	ContextLogs     HelpContext = "logs"
)

// ContextOf returns the help context for m.
func ContextOf(m Model) HelpContext {
	switch {
	case !m.Registered:
		return ContextRegister
	case m.View == ViewLogs:
		return ContextLogs
	case m.Mode == ModeEditing:
		return ContextEditing
	default:
		return ContextNormal
	}
}

// ShortHelp returns the bindings to show in the key bar for ctx.
func (k KeyMap) ShortHelp(ctx HelpContext) []key.Binding {
	switch ctx {
	case ContextRegister:
		return []key.Binding{k.Quit, k.Edit, k.Leave}
	case ContextEditing:
		return []key.Binding{k.ForceQuit, k.Submit, k.Leave, relabel(k.SwitchView, "logs")}
	case ContextLogs:
		return []key.Binding{k.Quit, relabel(k.SwitchView, "chat")}
	default:
		return []key.Binding{k.Quit, k.Edit, relabel(k.SwitchView, "logs")}
	}
}

// relabel returns a copy of b with a different help description.
func relabel(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
