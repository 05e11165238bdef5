// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the newline-delimited chat wire format.
//
// A session starts with one registration line from the client:
//
//	username:<name>\n
//
// The server answers with a welcome line and from then on relays every
// non-blank line a registered user sends, prefixed with "<name>: ", to all
// registered connections including the sender.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the address the server binds and the client dials.
	DefaultAddr = "localhost:8080"

	// RegistrationPrefix starts the first line a client sends.
	RegistrationPrefix = "username:"

	// DefaultMaxLineLength caps a single line in bytes, newline included.
	DefaultMaxLineLength = 4096
)

// ============================================================================
// ERRORS
// ============================================================================

// ErrProtocol marks a peer that violated the wire format.
// The connection is closed; the server keeps running.
var ErrProtocol = errors.New("protocol error")

// ErrLineTooLong is returned when a line exceeds the configured cap.
var ErrLineTooLong = fmt.Errorf("%w: line too long", ErrProtocol)

// ConnectionError reports a failure to bind or reach an address.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ============================================================================
// LINE FRAMING
// ============================================================================

// ReadLine reads one line from r, keeping its trailing newline.
// A final line without a newline is returned as-is before io.EOF.
// If maxLen is positive and the line is longer than maxLen bytes,
// ErrLineTooLong is returned and the rest of the line is left unread.
func ReadLine(r *bufio.Reader, maxLen int) (string, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		if maxLen > 0 && len(line)+len(frag) > maxLen {
			return "", fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, maxLen)
		}
		line = append(line, frag...)

		switch {
		case err == nil:
			return string(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return string(line), nil
		default:
			return "", err
		}
	}
}

// TrimLine strips the line terminator ("\n" or "\r\n").
func TrimLine(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// IsBlank reports whether line holds nothing but whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// ============================================================================
// HANDSHAKE
// ============================================================================

// ParseRegistration extracts the username from a registration line.
// Everything after the prefix, trimmed of surrounding whitespace, is the
// name. A missing prefix or an empty name is a protocol error.
func ParseRegistration(line string) (string, error) {
	line = TrimLine(line)
	if !strings.HasPrefix(line, RegistrationPrefix) {
		return "", fmt.Errorf("%w: expected %q prefix", ErrProtocol, RegistrationPrefix)
	}

	name := strings.TrimSpace(strings.TrimPrefix(line, RegistrationPrefix))
	if name == "" {
		return "", fmt.Errorf("%w: empty username", ErrProtocol)
	}
	return name, nil
}

// Registration formats the registration line for name.
func Registration(name string) string {
	return RegistrationPrefix + name + "\n"
}

// Welcome formats the line sent to a newly registered user.
func Welcome(name string) string {
	return fmt.Sprintf("Welcome to the chat, %s!\n", name)
}

// ============================================================================
// RELAY
// ============================================================================

// Relay formats a broadcast payload. The line keeps its own terminator;
// one is added if the sender's final line had none.
func Relay(name, line string) string {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return name + ": " + line
}
