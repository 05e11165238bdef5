// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/chatty/internal/config"
	"github.com/jeranaias/chatty/internal/network"
	"github.com/jeranaias/chatty/internal/protocol"
	"github.com/jeranaias/chatty/internal/server"
)

// isolate points HOME at a temp dir and clears CHATTY_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "CHATTY_") {
			t.Setenv(name, "")
		}
	}
	return home
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"usage", &UsageError{Err: errors.New("unknown flag")}, ExitUsageError},
		{"validation", config.ValidateErrors{{Field: "server.capacity", Message: "bad"}}, ExitConfigError},
		{"config load", configError("serve", errors.New("unknown keys: x")), ExitConfigError},
		{"other command error", &CommandError{Command: "config init", Action: "write config", Err: errors.New("exists")}, ExitGeneralError},
		{"connection", &protocol.ConnectionError{Op: "dial", Addr: "127.0.0.1:1", Err: errors.New("refused")}, ExitNetworkError},
		{"session ended", fmt.Errorf("%w: server closed connection", network.ErrSessionEnded), ExitNetworkError},
		{"wrapped connection", fmt.Errorf("start: %w", &protocol.ConnectionError{Op: "listen"}), ExitNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestVersion(t *testing.T) {
	isolate(t)

	code, out, _ := run(t, "version")

	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "chatty "+Version)
	assert.Contains(t, out, "commit      "+GitCommit+"\n")
	assert.Contains(t, out, "built       "+BuildDate+"\n")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	isolate(t)

	code, _, stderr := run(t, "serve", "--no-such-flag")

	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestUnexpectedArgumentFails(t *testing.T) {
	isolate(t)

	code, _, _ := run(t, "version", "extra")

	assert.NotEqual(t, ExitSuccess, code)
}

func TestInvalidConfigFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("[server]\nbogus = 1\n"), 0o600))
	code, _, stderr := run(t, "--config", unknown, "config", "show")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "bogus")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("server:\n  capacity: -1\n"), 0o600))
	code, _, stderr = run(t, "--config", invalid, "config", "show")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "server.capacity")
}

func TestInvalidFlagValueIsConfigError(t *testing.T) {
	isolate(t)

	code, _, stderr := run(t, "serve", "--capacity=-1")

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "server.capacity")
}

func TestConfigInitShowPath(t *testing.T) {
	home := isolate(t)
	want := filepath.Join(home, ".chatty", "config.toml")

	code, out, _ := run(t, "config", "path")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, want, strings.TrimSpace(out))

	code, out, _ = run(t, "config", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, want)
	assert.FileExists(t, want)

	code, _, stderr := run(t, "config", "init")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, stderr, "already exists")

	code, _, _ = run(t, "config", "init", "--force")
	assert.Equal(t, ExitSuccess, code)

	code, out, _ = run(t, "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, `addr = "`+protocol.DefaultAddr+`"`)
	assert.Contains(t, out, "tick_rate = 4.0")
}

func TestServeAddressInUse(t *testing.T) {
	isolate(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	code, _, stderr := run(t, "serve", "--addr", ln.Addr().String(), "--log-level", "error")

	assert.Equal(t, ExitNetworkError, code)
	assert.Contains(t, stderr, "listen")
}

// =============================================================================
// LINE CLIENT
// =============================================================================

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type step struct {
	waitFor string
	input   string
}

// scriptedPrompter answers prompts from a script, optionally waiting for
// output to appear first. It returns io.EOF once the script is exhausted.
type scriptedPrompter struct {
	t       *testing.T
	out     *syncBuffer
	steps   []step
	prompts []string
}

func (p *scriptedPrompter) ReadInput(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if len(p.steps) == 0 {
		return "", io.EOF
	}
	s := p.steps[0]
	p.steps = p.steps[1:]
	if s.waitFor != "" {
		require.Eventually(p.t, func() bool {
			return strings.Contains(p.out.String(), s.waitFor)
		}, 5*time.Second, 5*time.Millisecond, "waiting for %q", s.waitFor)
	}
	return s.input, nil
}

func startServer(t *testing.T) *server.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(ln.Addr().String()).WithLogger(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, server.ErrServerClosed)
	})
	return srv
}

func TestLineClientChats(t *testing.T) {
	srv := startServer(t)
	out := &syncBuffer{}
	in := &scriptedPrompter{t: t, out: out, steps: []step{
		{input: "  "},
		{input: "alice"},
		{waitFor: "Welcome to the chat, alice!", input: "hello"},
		{waitFor: "alice: hello", input: "/quit"},
	}}

	err := runLine(context.Background(), in, out, srv.Addr(), "")

	require.NoError(t, err)
	assert.Equal(t, []string{"username: ", "username: ", "> ", "> "}, in.prompts)
	assert.Contains(t, out.String(), "\rWelcome to the chat, alice!\r\n")
	assert.Contains(t, out.String(), "\ralice: hello\r\n")
}

func TestLineClientEOFEndsSession(t *testing.T) {
	srv := startServer(t)
	out := &syncBuffer{}
	in := &scriptedPrompter{t: t, out: out, steps: []step{
		{input: "first"},
	}}

	err := runLine(context.Background(), in, out, srv.Addr(), "bob")

	require.NoError(t, err)
	assert.Equal(t, []string{"> ", "> "}, in.prompts)
}

func TestLineClientDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = runLine(context.Background(), &scriptedPrompter{t: t}, io.Discard, addr, "carol")

	var connErr *protocol.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}

// =============================================================================
// LINE HISTORY
// =============================================================================

type historyFunc func(w io.Writer) (int, error)

func (f historyFunc) WriteHistory(w io.Writer) (int, error) { return f(w) }

func TestSaveHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "line_history")
	h := historyFunc(func(w io.Writer) (int, error) {
		return io.WriteString(w, "hello\n/quit\n")
	})

	require.NoError(t, saveHistory(h, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n/quit\n", string(data))
}

func TestSaveHistoryReportsWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	h := historyFunc(func(w io.Writer) (int, error) {
		return io.WriteString(w, "hello\n")
	})

	err := saveHistory(h, filepath.Join(blocker, "line_history"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save line history")
}

func TestSaveHistoryReportsEncodeFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line_history")
	h := historyFunc(func(io.Writer) (int, error) {
		return 0, errors.New("history busy")
	})

	err := saveHistory(h, path)

	require.ErrorContains(t, err, "history busy")
	assert.NoFileExists(t, path)
}
