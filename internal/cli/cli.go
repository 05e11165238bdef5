// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatty/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
}

// loadConfig reads the config file named by --config, or the default one.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromPath(o.configPath)
	}
	return config.Load()
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the chatty command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "chatty",
		Short: "Line-oriented TCP chat server and terminal client",
		Long: `chatty is a small TCP chat.

Run "chatty serve" on one machine, then "chatty" on each client to open the
full-screen chat. The first line a client sends registers its username;
every line after that is relayed to everyone connected.

Run without a subcommand to start the terminal client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureColors()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (.toml, .yaml or .yml)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	bindClientCommand(root, opts)
	root.AddCommand(
		newServeCommand(opts),
		newLineCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, render(ErrorStyle, "Error:"), err)
	}
	return ExitCode(err)
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, render(TitleStyle, "chatty "+Version))
			fmt.Fprintf(out, "%s%s\n", label("commit"), GitCommit)
			fmt.Fprintf(out, "%s%s\n", label("built"), BuildDate)
			fmt.Fprintf(out, "%s%s %s/%s\n", label("go"), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
