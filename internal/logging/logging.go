// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used by the server and the client.
//
// The server logs to stderr in console or JSON form. The client cannot write
// to the terminal while it owns the screen, so its records are formatted as
// "HH:MM:SS [LEVEL] message" and pushed into the event stream as
// event.LogRecord values for the Logs view, optionally mirrored to a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/chatty/internal/event"
)

// Supported output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel converts a level name such as "info" or "debug".
// An empty name means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// =============================================================================
// SERVER LOGGER
// =============================================================================

// NewServer builds the server logger writing to stderr.
func NewServer(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var config zap.Config
	switch strings.ToLower(format) {
	case FormatJSON:
		config = zap.NewProductionConfig()
	case "", FormatConsole:
		config = zap.NewDevelopmentConfig()
		config.Development = false
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	default:
		return nil, fmt.Errorf("invalid log format %q: must be one of: console, json", format)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("chatty"), nil
}

// =============================================================================
// CLIENT LOGGER
// =============================================================================

// ClientEncoderConfig renders "15:04:05 [INFO] message".
func ClientEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       "\n",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      bracketLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// eventWriter turns each encoded entry into a LogRecord event.
type eventWriter struct {
	sink event.Sink
}

func (w eventWriter) Write(p []byte) (int, error) {
	w.sink.Push(event.LogRecord{Line: strings.TrimRight(string(p), "\n")})
	return len(p), nil
}

func (w eventWriter) Sync() error { return nil }

// NewClient builds the client logger. Records at or above level are pushed
// to sink; if path is not empty they are also appended to that file.
// The returned close function syncs and closes the file.
func NewClient(sink event.Sink, level, path string) (*zap.Logger, func() error, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	encoder := zapcore.NewConsoleEncoder(ClientEncoderConfig())
	cores := []zapcore.Core{zapcore.NewCore(encoder, eventWriter{sink: sink}, lvl)}

	closeFn := func() error { return nil }
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.Lock(f), lvl))
		closeFn = func() error {
			_ = f.Sync()
			return f.Close()
		}
	}

	return zap.New(zapcore.NewTee(cores...)), closeFn, nil
}
