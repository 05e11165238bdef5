// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/chatty/internal/broadcast"
	"github.com/jeranaias/chatty/internal/logging"
	"github.com/jeranaias/chatty/internal/protocol"
	"github.com/jeranaias/chatty/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatty configuration.
type Config struct {
	// Server holds settings for "chatty serve"
	Server ServerConfig `toml:"server" yaml:"server"`

	// Client holds settings for the terminal and line clients
	Client ClientConfig `toml:"client" yaml:"client"`

	// Log holds logging settings shared by both sides
	Log LogConfig `toml:"log" yaml:"log"`
}

// ServerConfig contains broadcast server configuration.
type ServerConfig struct {
	// Addr is the host:port the server binds
	Addr string `toml:"addr" yaml:"addr"`
	// Capacity is how many messages are retained for lagging receivers
	Capacity int `toml:"capacity" yaml:"capacity"`
	// MaxLineLength caps one line in bytes, newline included
	MaxLineLength int `toml:"max_line_length" yaml:"max_line_length"`
	// MessagesPerSecond limits each connection's publish rate (0 = unlimited)
	MessagesPerSecond float64 `toml:"messages_per_second" yaml:"messages_per_second"`
	// Burst is the number of lines a connection may send at once when limited
	Burst int `toml:"burst" yaml:"burst"`
}

// ClientConfig contains terminal client configuration.
type ClientConfig struct {
	// Addr is the host:port the client dials
	Addr string `toml:"addr" yaml:"addr"`
	// Username pre-fills the registration prompt
	Username string `toml:"username" yaml:"username"`
	// TickRate is the tick timer frequency in Hz
	TickRate float64 `toml:"tick_rate" yaml:"tick_rate"`
	// FrameRate is the render timer frequency in Hz
	FrameRate float64 `toml:"frame_rate" yaml:"frame_rate"`
	// LogFile mirrors client log records to a file (empty = Logs view only)
	LogFile string `toml:"log_file" yaml:"log_file"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" yaml:"level"`
	// Format is the server log format: console or json
	Format string `toml:"format" yaml:"format"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              protocol.DefaultAddr,
			Capacity:          broadcast.DefaultCapacity,
			MaxLineLength:     protocol.DefaultMaxLineLength,
			MessagesPerSecond: 0, // unlimited
			Burst:             10,
		},
		Client: ClientConfig{
			Addr:      protocol.DefaultAddr,
			TickRate:  4,
			FrameRate: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// TickInterval returns the period of the tick timer.
func (c ClientConfig) TickInterval() time.Duration {
	return hzToInterval(c.TickRate)
}

// FrameInterval returns the period of the render timer.
func (c ClientConfig) FrameInterval() time.Duration {
	return hzToInterval(c.FrameRate)
}

func hzToInterval(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatty configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatty"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathYAML returns the path to the YAML config file.
func ConfigPathYAML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default locations.
// Tries TOML first, then YAML, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathYAML} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	return finish(cfg)
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension: .yaml and .yml are YAML, anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := LoadYAML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load YAML config from %s: %w", path, err)
		}
	default:
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadYAML decodes a YAML file over cfg. Keys absent from the file keep
// their current values.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path as TOML, creating parent directories.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

const (
	maxCapacity   = 1 << 16
	minLineLength = 64
	maxLineLength = 1 << 20
	maxRateHz     = 240
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Server
	if err := validateAddr(c.Server.Addr); err != "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: err})
	}
	if c.Server.Capacity < 1 || c.Server.Capacity > maxCapacity {
		errs = append(errs, ValidationError{
			Field:   "server.capacity",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", maxCapacity, c.Server.Capacity),
		})
	}
	if c.Server.MaxLineLength < minLineLength || c.Server.MaxLineLength > maxLineLength {
		errs = append(errs, ValidationError{
			Field:   "server.max_line_length",
			Message: fmt.Sprintf("must be between %d and %d bytes, got %d", minLineLength, maxLineLength, c.Server.MaxLineLength),
		})
	}
	if c.Server.MessagesPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.messages_per_second",
			Message: "cannot be negative",
		})
	}
	if c.Server.MessagesPerSecond > 0 && c.Server.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.burst",
			Message: "must be at least 1 when messages_per_second is set",
		})
	}

	// Client
	if err := validateAddr(c.Client.Addr); err != "" {
		errs = append(errs, ValidationError{Field: "client.addr", Message: err})
	}
	if c.Client.TickRate <= 0 || c.Client.TickRate > maxRateHz {
		errs = append(errs, ValidationError{
			Field:   "client.tick_rate",
			Message: fmt.Sprintf("must be in (0, %d] Hz, got %g", maxRateHz, c.Client.TickRate),
		})
	}
	if c.Client.FrameRate <= 0 || c.Client.FrameRate > maxRateHz {
		errs = append(errs, ValidationError{
			Field:   "client.frame_rate",
			Message: fmt.Sprintf("must be in (0, %d] Hz, got %g", maxRateHz, c.Client.FrameRate),
		})
	}
	if c.Client.Username != "" {
		if strings.ContainsAny(c.Client.Username, "\r\n") {
			errs = append(errs, ValidationError{Field: "client.username", Message: "must fit on one line"})
		} else if _, err := protocol.ParseRegistration(protocol.Registration(c.Client.Username)); err != nil {
			errs = append(errs, ValidationError{Field: "client.username", Message: err.Error()})
		}
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: console, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateAddr(addr string) string {
	if addr == "" {
		return "cannot be empty"
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Sprintf("invalid address '%s': %v", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Sprintf("invalid port '%s'", port)
	}
	return ""
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.Capacity == 0 {
		c.Server.Capacity = defaults.Server.Capacity
	}
	if c.Server.MaxLineLength == 0 {
		c.Server.MaxLineLength = defaults.Server.MaxLineLength
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = defaults.Server.Burst
	}

	if c.Client.Addr == "" {
		c.Client.Addr = defaults.Client.Addr
	}
	if c.Client.TickRate == 0 {
		c.Client.TickRate = defaults.Client.TickRate
	}
	if c.Client.FrameRate == 0 {
		c.Client.FrameRate = defaults.Client.FrameRate
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CHATTY_ADDR: overrides server.addr and client.addr
//   - CHATTY_SERVER_ADDR: overrides server.addr
//   - CHATTY_CLIENT_ADDR: overrides client.addr
//   - CHATTY_USERNAME: overrides client.username
//   - CHATTY_LOG_LEVEL: overrides log.level
//   - CHATTY_LOG_FORMAT: overrides log.format
//   - CHATTY_LOG_FILE: overrides client.log_file
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("CHATTY_ADDR"); addr != "" {
		c.Server.Addr = addr
		c.Client.Addr = addr
	}
	if addr := os.Getenv("CHATTY_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if addr := os.Getenv("CHATTY_CLIENT_ADDR"); addr != "" {
		c.Client.Addr = addr
	}
	if name := os.Getenv("CHATTY_USERNAME"); name != "" {
		c.Client.Username = name
	}
	if level := os.Getenv("CHATTY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("CHATTY_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
	if file := os.Getenv("CHATTY_LOG_FILE"); file != "" {
		c.Client.LogFile = file
	}
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
