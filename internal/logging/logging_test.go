// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/chatty/internal/event"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "chatty", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseLevel(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseLevel(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
	}
}

func TestNewServer(t *testing.T) {
	for _, format := range []string{"", FormatConsole, FormatJSON} {
		logger, err := NewServer("info", format)
		require.NoError(t, err, "format %q", format)
		require.NotNil(t, logger)
	}

	_, err := NewServer("info", "xml")
	assert.Error(t, err)

	_, err = NewServer("loud", "json")
	assert.Error(t, err)
}

var clientLine = regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[INFO\] connected`)

func TestNewClient_PushesLogRecords(t *testing.T) {
	q := event.NewQueue()
	logger, closeFn, err := NewClient(q, "info", "")
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("connected", zap.String("addr", "localhost:8080"))

	require.Equal(t, 1, q.Len())
	ev, ok := q.TryPop()
	require.True(t, ok)

	rec, ok := ev.(event.LogRecord)
	require.True(t, ok, "got %T, want event.LogRecord", ev)
	assert.Regexp(t, clientLine, rec.Line)
	assert.Contains(t, rec.Line, `"addr": "localhost:8080"`)
	assert.NotContains(t, rec.Line, "\n")
}

func TestNewClient_MirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")
	q := event.NewQueue()

	logger, closeFn, err := NewClient(q, "warn", path)
	require.NoError(t, err)

	logger.Info("skipped")
	logger.Warn("lagging")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] lagging")
	assert.NotContains(t, string(data), "skipped")
	assert.Equal(t, 1, q.Len())
}
