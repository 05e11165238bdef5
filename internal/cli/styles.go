// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatty/internal/ui/styles"
	"github.com/jeranaias/chatty/internal/util"
)

// labelWidth is the column width of field labels.
const labelWidth = 12

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and banners
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Green)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Width(labelWidth)

	// PromptStyle is used for the line client prompt
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Cyan)

	// ErrorStyle is used for error messages
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Rose)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)
)

// configureColors applies NO_COLOR/FORCE_COLOR and TTY detection to lipgloss.
func configureColors() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// render applies style only when colors are enabled.
func render(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// label renders a fixed-width field label.
func label(text string) string {
	if !ColorsEnabled() {
		return util.PadRight(text, labelWidth)
	}
	return LabelStyle.Render(text)
}
