// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package view renders a chat.Model into a full-screen frame.
//
// Before registration the frame is a username prompt. Afterwards it shows a
// tab row, the active panel (chat messages with an input box, or log
// records), and a status bar with key bindings, frame rate and input mode.
// Render never modifies the model.
package view

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/chatty/internal/ui/chat"
	"github.com/jeranaias/chatty/internal/ui/styles"
	"github.com/jeranaias/chatty/internal/util"
)

const (
	inputBoxHeight = 3
	minWidth       = 20
	minHeight      = 8
	registerTitle  = "Enter your username"
)

// Renderer draws models with a fixed theme and key map.
type Renderer struct {
	theme *styles.Theme
	keys  chat.KeyMap
	help  help.Model
}

// New returns a Renderer.
func New(theme *styles.Theme, keys chat.KeyMap) *Renderer {
	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.ShortSeparator = theme.ShortcutSep
	h.Styles.Ellipsis = theme.ShortcutSep

	return &Renderer{theme: theme, keys: keys, help: h}
}

// Render returns the frame for m at width x height cells.
func (r *Renderer) Render(m chat.Model, width, height int) string {
	width = max(width, minWidth)
	height = max(height, minHeight)
	r.theme.SetSize(width, height)

	if !m.Registered {
		return r.renderRegister(m, width, height)
	}
	return r.renderApp(m, width, height)
}

// =============================================================================
// REGISTRATION SCREEN
// =============================================================================

func (r *Renderer) renderRegister(m chat.Model, width, height int) string {
	title := lipgloss.PlaceHorizontal(width, lipgloss.Center, r.theme.Title.Render(registerTitle))
	keys := r.keyBar(m, width)

	return strings.Join([]string{
		title,
		r.inputBox(m, width),
		keys,
	}, "\n")
}

// =============================================================================
// MAIN SCREEN
// =============================================================================

func (r *Renderer) renderApp(m chat.Model, width, height int) string {
	content := height - 2

	var body string
	switch m.View {
	case chat.ViewLogs:
		body = r.panel(m.Logs, r.logStyle, width, content)
	default:
		body = r.panel(m.Messages, r.messageStyle, width, content-inputBoxHeight) +
			"\n" + r.inputBox(m, width)
	}

	return strings.Join([]string{
		r.tabs(m.View),
		body,
		r.statusBar(m, width),
	}, "\n")
}

func (r *Renderer) tabs(active chat.ActiveView) string {
	titles := make([]string, 0, len(chat.Views))
	for _, v := range chat.Views {
		if v == active {
			titles = append(titles, r.theme.TabActive.Render(v.Title()))
		} else {
			titles = append(titles, r.theme.Tab.Render(v.Title()))
		}
	}
	return strings.Join(titles, r.theme.TabSeparator.Render("|"))
}

// panel draws the newest lines that fit in a bordered box of the given outer
// size. Lines are cut, not wrapped.
func (r *Renderer) panel(lines []string, style func(string) lipgloss.Style, width, height int) string {
	innerW := max(width-2, 1)
	innerH := max(height-2, 1)

	if len(lines) > innerH {
		lines = lines[len(lines)-innerH:]
	}
	rendered := make([]string, len(lines))
	for i, line := range lines {
		line = util.TruncateWidth(printable(line), innerW)
		rendered[i] = style(line).Render(line)
	}

	return r.theme.Panel.
		Width(innerW).
		Height(innerH).
		Render(strings.Join(rendered, "\n"))
}

func (r *Renderer) inputBox(m chat.Model, width int) string {
	innerW := max(width-2, 1)
	editing := m.Mode == chat.ModeEditing

	box, text := r.theme.InputBox, r.theme.InputText
	if editing {
		box, text = r.theme.InputBoxEditing, r.theme.InputTextEditing
	}

	runes := []rune(m.Input.Value())
	visible, at := util.Window(runes, m.Input.Position(), innerW)

	var line string
	if editing {
		vr := []rune(visible)
		under := " "
		after := ""
		if at < len(vr) {
			under = string(vr[at])
			after = string(vr[at+1:])
		}
		line = text.Render(string(vr[:at])) + r.theme.Cursor.Render(under) + text.Render(after)
	} else {
		line = text.Render(visible)
	}

	return box.Width(innerW).Render(line)
}

func (r *Renderer) statusBar(m chat.Model, width int) string {
	if r.theme.GetLayoutMode() == styles.LayoutNarrow {
		return r.keyBar(m, width)
	}

	leftW := width / 2
	rightW := width - leftW

	fps := r.theme.FPS.Render(fmt.Sprintf("FPS: %d", m.FPS))
	mode := r.theme.Mode.Render(m.Mode.String())
	gap := max(rightW-lipgloss.Width(fps)-lipgloss.Width(mode), 1)

	return r.keyBar(m, leftW) + fps + strings.Repeat(" ", gap) + mode
}

// keyBar renders the bindings for m's context, padded to width.
func (r *Renderer) keyBar(m chat.Model, width int) string {
	r.help.Width = width
	bar := r.help.ShortHelpView(r.keys.ShortHelp(chat.ContextOf(m)))
	return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(bar)
}

// =============================================================================
// LINE STYLING
// =============================================================================

func (r *Renderer) messageStyle(string) lipgloss.Style {
	return r.theme.Message
}

func (r *Renderer) logStyle(line string) lipgloss.Style {
	switch {
	case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[FATAL]"),
		strings.Contains(line, "[PANIC]"), strings.Contains(line, "[DPANIC]"):
		return r.theme.LogError
	case strings.Contains(line, "[WARN]"):
		return r.theme.LogWarn
	case strings.Contains(line, "[DEBUG]"):
		return r.theme.LogDebug
	default:
		return r.theme.LogLine
	}
}

// printable replaces control characters so peer text cannot move the
// cursor or change terminal state. Combining sequences are composed, since
// many terminals draw a lone combining mark in its own cell.
func printable(line string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return '?'
		}
		return r
	}, norm.NFC.String(line))
}
