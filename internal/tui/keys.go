// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// KEY DECODING
// =============================================================================

// escapeSequences maps the tails of CSI and SS3 sequences (the bytes after
// ESC) to keys.
var escapeSequences = map[string]tea.KeyType{
	"[A":  tea.KeyUp,
	"[B":  tea.KeyDown,
	"[C":  tea.KeyRight,
	"[D":  tea.KeyLeft,
	"[H":  tea.KeyHome,
	"[F":  tea.KeyEnd,
	"[1~": tea.KeyHome,
	"[7~": tea.KeyHome,
	"[4~": tea.KeyEnd,
	"[8~": tea.KeyEnd,
	"[3~": tea.KeyDelete,
	"[5~": tea.KeyPgUp,
	"[6~": tea.KeyPgDown,
	"[Z":  tea.KeyShiftTab,
	"OA":  tea.KeyUp,
	"OB":  tea.KeyDown,
	"OC":  tea.KeyRight,
	"OD":  tea.KeyLeft,
	"OH":  tea.KeyHome,
	"OF":  tea.KeyEnd,
}

// DecodeKeys splits raw terminal input into key presses.
// Printable text yields one KeyRunes message per rune. Unknown escape
// sequences are dropped. A lone ESC at the end of the buffer is Esc.
func DecodeKeys(b []byte) []tea.KeyMsg {
	var keys []tea.KeyMsg
	for len(b) > 0 {
		k, n := decodeOne(b)
		b = b[n:]
		if k != nil {
			keys = append(keys, *k)
		}
	}
	return keys
}

func decodeOne(b []byte) (*tea.KeyMsg, int) {
	c := b[0]
	switch {
	case c == 0x1b:
		return decodeEscape(b)
	case c == '\r' || c == '\n':
		return key(tea.KeyEnter), 1
	case c == '\t':
		return key(tea.KeyTab), 1
	case c == 0x7f:
		return key(tea.KeyBackspace), 1
	case c == ' ':
		return &tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, 1
	case c < 0x20:
		// Control characters share their codes with the ctrl+letter keys.
		return key(tea.KeyType(c)), 1
	}

	r, n := utf8.DecodeRune(b)
	if r == utf8.RuneError && n <= 1 {
		return nil, 1
	}
	return &tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}, n
}

func decodeEscape(b []byte) (*tea.KeyMsg, int) {
	if len(b) == 1 {
		return key(tea.KeyEsc), 1
	}

	switch b[1] {
	case '[':
		// CSI: parameters and intermediates up to a final byte in 0x40-0x7e.
		for i := 2; i < len(b); i++ {
			if b[i] >= 0x40 && b[i] <= 0x7e {
				if t, ok := escapeSequences[string(b[1:i+1])]; ok {
					return key(t), i + 1
				}
				return nil, i + 1
			}
		}
		return nil, len(b)
	case 'O':
		if len(b) >= 3 {
			if t, ok := escapeSequences[string(b[1:3])]; ok {
				return key(t), 3
			}
			return nil, 3
		}
		return nil, len(b)
	case 0x1b:
		return key(tea.KeyEsc), 1
	}

	// ESC followed by a key is that key with Alt held.
	k, n := decodeOne(b[1:])
	if k == nil {
		return key(tea.KeyEsc), 1
	}
	k.Alt = true
	return k, n + 1
}

func key(t tea.KeyType) *tea.KeyMsg {
	return &tea.KeyMsg{Type: t}
}
