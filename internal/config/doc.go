// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for chatty.
//
// Supports both TOML and YAML configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServerConfig: Bind address, broadcast capacity, line cap, rate limit
//   - ClientConfig: Dial address, timer rates, log file
//   - LogConfig: Level and server output format
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags
//   - Environment variables (CHATTY_*)
//   - ~/.chatty/config.toml
//   - ~/.chatty/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg.Server.Addr).WithCapacity(cfg.Server.Capacity)
package config
