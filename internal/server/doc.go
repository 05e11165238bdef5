// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the chat broadcast server.
//
// Each accepted TCP connection sends one registration line, is greeted, and
// then relays every non-blank line it sends to all registered connections
// (the sender included) through a shared broadcast channel.
//
// # Wire Protocol
//
//	client: username:alice\n
//	server: Welcome to the chat, alice!\n
//	client: hi\n
//	server: alice: hi\n            (to every registered connection)
//
// # Connection Lifecycle
//
//   - A connection that closes before sending a line is dropped silently
//   - A malformed registration line is a protocol error; the connection
//     is closed and nothing is registered
//   - A registered connection is listed in the Directory and subscribed to
//     the broadcast channel until it ends, for any reason
//   - A receiver that falls more than the channel capacity behind skips
//     the missed messages and keeps its connection
//   - Lines longer than the configured cap close the connection
//
// # Key Types
//
//   - Server: listener lifecycle and per-connection relays
//   - Directory: mutex-guarded identity to username map
//
// # Usage
//
//	srv := server.New("localhost:8080").
//		WithLogger(logger).
//		WithCapacity(15)
//	if err := srv.ListenAndServe(ctx); !errors.Is(err, server.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
