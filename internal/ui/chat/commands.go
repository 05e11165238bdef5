// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// Command is an effect requested by Update and carried out by the main loop.
type Command interface {
	isCommand()
}

// SendCommand asks for Text to be written to the server as one line.
type SendCommand struct {
	Text string
}

// QuitCommand asks the main loop to stop.
type QuitCommand struct{}

func (SendCommand) isCommand() {}
func (QuitCommand) isCommand() {}
