// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateWidth cuts s to at most maxWidth cells, appending "..." when
// something was cut and there is room for it. Wide runes are never split.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to exactly width cells, truncating first if
// it is wider.
func PadRight(s string, width int) string {
	s = runewidth.Truncate(s, width, "")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// Window returns the slice of runes, as a string, that fits in width cells
// and keeps the rune at index cursor visible. A cursor at len(runes) counts
// as one extra cell. The second result is cursor's offset in the window.
func Window(runes []rune, cursor, width int) (string, int) {
	if width <= 0 {
		return "", 0
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}

	// Walk left from the cursor until the window is full.
	start := cursor
	used := 1
	if cursor < len(runes) {
		used = runewidth.RuneWidth(runes[cursor])
	}
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if used+w > width {
			break
		}
		used += w
		start--
	}

	// Then extend right with whatever room remains.
	end := cursor
	if cursor < len(runes) {
		end = cursor + 1
	}
	for end < len(runes) {
		w := runewidth.RuneWidth(runes[end])
		if used+w > width {
			break
		}
		used += w
		end++
	}
	return string(runes[start:end]), cursor - start
}
