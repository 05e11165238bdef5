// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the chat client.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The Theme struct groups the styles by screen area and records the
terminal's color profile:

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutNarrow {
		// drop optional status bar content
	}
*/
package styles
