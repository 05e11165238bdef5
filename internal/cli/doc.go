// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the chatty command line.

# Commands

	chatty                 Start the terminal chat client
	chatty serve           Run the broadcast chat server
	chatty line            Plain line client with history (no full-screen UI)
	chatty config init     Write a default config file
	chatty config show     Print the effective configuration
	chatty config path     Print the default config file path
	chatty version         Print version information

# Configuration

Settings come from ~/.chatty/config.toml (or the file given with --config,
TOML or YAML by extension), then CHATTY_* environment variables, then flags.

# Exit Codes

	0  success
	1  general error
	2  usage error
	3  configuration error
	5  network error (server unreachable, address in use, connection lost)
*/
package cli
