// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat client.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Title        lipgloss.Style
	Tab          lipgloss.Style
	TabActive    lipgloss.Style
	TabSeparator lipgloss.Style

	// ==========================================================================
	// PANEL STYLES
	// ==========================================================================

	Panel    lipgloss.Style
	Message  lipgloss.Style
	LogLine  lipgloss.Style
	LogDebug lipgloss.Style
	LogWarn  lipgloss.Style
	LogError lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputBox         lipgloss.Style
	InputBoxEditing  lipgloss.Style
	InputText        lipgloss.Style
	InputTextEditing lipgloss.Style
	Cursor           lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ShortcutSep  lipgloss.Style
	FPS          lipgloss.Style
	Mode         lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Green)

	t.Tab = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(Green).
		Padding(0, 1)

	t.TabSeparator = lipgloss.NewStyle().
		Foreground(Overlay)

	// Panels
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay)

	t.Message = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.LogLine = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.LogDebug = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.LogWarn = lipgloss.NewStyle().
		Foreground(Amber)

	t.LogError = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	// Input
	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay)

	t.InputBoxEditing = t.InputBox.
		BorderForeground(Green)

	t.InputText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.InputTextEditing = lipgloss.NewStyle().
		Foreground(Green)

	t.Cursor = lipgloss.NewStyle().
		Reverse(true)

	// Status bar
	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(Cyan)

	t.ShortcutSep = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.FPS = lipgloss.NewStyle().
		Foreground(Blue)

	t.Mode = lipgloss.NewStyle().
		Bold(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, no FPS readout
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
