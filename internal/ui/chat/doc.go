// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat holds the chat client's application state and the dispatcher
that advances it.

# Model (model.go)

Model is the single mutable state of the client:
  - input mode (Normal or Editing) and whether the user has registered
  - the pending input line, edited by a bubbles textinput
  - received chat lines and formatted log records
  - the active view (Chat or Logs) and the sampled frame rate

The main loop owns the Model. The renderer only reads it.

# Dispatcher (update.go)

Dispatcher.Update maps one event.Event onto a new Model plus the commands
the main loop must carry out:

	model, cmds := d.Update(model, ev)
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case chat.SendCommand:
			conn.Send(cmd.Text)
		case chat.QuitCommand:
			return nil
		}
	}

Update performs no I/O. The clock used for frame-rate sampling is injected
through NewDispatcher so tests can drive it.

# Input Modes

Before registration the input box collects a username; Enter sends
"username:<name>" and marks the model registered. Afterwards:

	Normal  + enter -> Editing (Chat view only)
	Editing + esc   -> Normal (buffer kept)
	Editing + enter -> send buffer, clear it
	tab             -> toggle Chat/Logs
	Normal  + q     -> quit
	ctrl+c          -> quit from anywhere
*/
package chat
