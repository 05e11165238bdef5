// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatty/internal/config"
	"github.com/jeranaias/chatty/internal/event"
	"github.com/jeranaias/chatty/internal/network"
	"github.com/jeranaias/chatty/internal/protocol"
	"github.com/jeranaias/chatty/internal/util"
)

const quitCommand = "/quit"

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineEditor provides input history and line editing for the line client.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "line_history")}

	if f, err := os.Open(e.historyFile); err == nil {
		_, _ = e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

// ReadInput reads one line, recording non-blank input in the history.
func (e *lineEditor) ReadInput(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history and restores the terminal. The terminal is
// restored even when saving fails.
func (e *lineEditor) Close() error {
	saveErr := saveHistory(e.line, e.historyFile)
	return errors.Join(saveErr, e.line.Close())
}

// historyWriter is the part of liner.State that serialises the history.
type historyWriter interface {
	WriteHistory(w io.Writer) (int, error)
}

// saveHistory atomically replaces path with the history held by h.
func saveHistory(h historyWriter, path string) error {
	var buf bytes.Buffer
	if _, err := h.WriteHistory(&buf); err != nil {
		return fmt.Errorf("failed to encode line history: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to save line history: %w", err)
	}
	return nil
}

// =============================================================================
// LINE CLIENT
// =============================================================================

// prompter reads one line of user input.
type prompter interface {
	ReadInput(prompt string) (string, error)
}

func newLineCommand(opts *globalOptions) *cobra.Command {
	var addr, name string

	cmd := &cobra.Command{
		Use:   "line",
		Short: "Chat from a plain prompt with history",
		Long: `Connect to a chat server without the full-screen interface.

Received lines are printed as they arrive. Type a line and press Enter to
send it; /quit, Ctrl+C or Ctrl+D leaves. Input history is kept in
~/.chatty/line_history. Standard input may also be a pipe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return configError("line", err)
			}
			if cmd.Flags().Changed("addr") {
				cfg.Client.Addr = addr
			}
			if cmd.Flags().Changed("name") {
				cfg.Client.Username = name
			}
			if err := cfg.Validate(); err != nil {
				return configError("line", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			editor := newLineEditor()
			defer func() {
				if err := editor.Close(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), render(DimStyle, "warning:"), err)
				}
			}()

			return runLine(ctx, editor, cmd.OutOrStdout(), cfg.Client.Addr, cfg.Client.Username)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (host:port)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "username (prompted for when empty)")
	return cmd
}

// runLine registers as name (asking for it when empty) and then relays
// prompt input to the server while printing received lines to out.
func runLine(ctx context.Context, in prompter, out io.Writer, addr, name string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := event.NewQueue()
	conn, err := network.Dial(ctx, addr, events)
	if err != nil {
		return err
	}
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(ctx, events, out)
	}()
	defer func() {
		events.Close()
		wg.Wait()
	}()

	for strings.TrimSpace(name) == "" {
		name, err = in.ReadInput("username: ")
		if err != nil {
			return ignoreQuit(err)
		}
	}
	if err := conn.Send(protocol.RegistrationPrefix + strings.TrimSpace(name)); err != nil {
		return err
	}

	for {
		text, err := in.ReadInput(render(PromptStyle, "> "))
		if err != nil {
			return ignoreQuit(err)
		}
		if strings.TrimSpace(text) == quitCommand {
			return nil
		}
		if err := conn.Send(text); err != nil {
			if errors.Is(err, network.ErrClosed) {
				fmt.Fprintln(out, render(DimStyle, "connection closed"))
				return conn.Err()
			}
			return err
		}
	}
}

// printEvents writes received lines and pump errors to out until the queue
// is closed and drained.
func printEvents(ctx context.Context, events *event.Queue, out io.Writer) {
	for {
		ev, err := events.Pop(context.WithoutCancel(ctx))
		if err != nil {
			return
		}
		switch ev := ev.(type) {
		case event.NetworkLine:
			fmt.Fprintf(out, "\r%s\r\n", ev.Text)
		case event.Error:
			fmt.Fprintf(out, "\r%s %v\r\n", render(ErrorStyle, "error:"), ev.Err)
		}
	}
}

func ignoreQuit(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
