// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat client and server.
//
// String Utilities (display width aware, via go-runewidth):
//   - TruncateWidth, PadRight
//   - Window: horizontal scrolling of an input line around its cursor
//
// File Operations:
//   - WriteFileAtomic: crash-safe file writing with fsync
package util
