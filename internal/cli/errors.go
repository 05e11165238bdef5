// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/chatty/internal/config"
	"github.com/jeranaias/chatty/internal/network"
	"github.com/jeranaias/chatty/internal/protocol"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "serve", "line")
	Action  string // Action being performed (e.g., "load config")
	Err     error  // Underlying error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError marks a bad flag or argument.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// configError wraps a configuration failure for command.
func configError(command string, err error) error {
	return &CommandError{Command: command, Action: "load config", Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		connErr  *protocol.ConnectionError
		usage    *UsageError
		validate config.ValidateErrors
		cmdErr   *CommandError
	)
	switch {
	case errors.As(err, &connErr), errors.Is(err, network.ErrSessionEnded):
		return ExitNetworkError
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validate):
		return ExitConfigError
	case errors.As(err, &cmdErr) && cmdErr.Action == "load config":
		return ExitConfigError
	default:
		return ExitGeneralError
	}
}
