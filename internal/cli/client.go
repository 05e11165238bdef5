// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatty/internal/app"
	"github.com/jeranaias/chatty/internal/config"
)

type clientFlags struct {
	addr      string
	name      string
	tickRate  float64
	frameRate float64
	logFile   string
	logLevel  string
}

// bindClientCommand makes root start the terminal client.
func bindClientCommand(root *cobra.Command, opts *globalOptions) {
	f := &clientFlags{}

	flags := root.Flags()
	flags.StringVarP(&f.addr, "addr", "a", "", "server address (host:port)")
	flags.StringVarP(&f.name, "name", "n", "", "pre-fill the username prompt")
	flags.Float64Var(&f.tickRate, "tick-rate", 0, "tick timer frequency in Hz")
	flags.Float64Var(&f.frameRate, "frame-rate", 0, "render frequency in Hz")
	flags.StringVar(&f.logFile, "log-file", "", "also append client log records to this file")
	flags.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.Args = cobra.NoArgs
	root.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := opts.loadConfig()
		if err != nil {
			return configError("chatty", err)
		}
		if err := f.apply(cmd, cfg); err != nil {
			return configError("chatty", err)
		}
		if err := RequiresTTY("start the chat client"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return app.Run(ctx, app.Options{
			Addr:          cfg.Client.Addr,
			Username:      cfg.Client.Username,
			TickRate:      cfg.Client.TickInterval(),
			FrameRate:     cfg.Client.FrameInterval(),
			MaxLineLength: cfg.Server.MaxLineLength,
			LogLevel:      cfg.Log.Level,
			LogFile:       cfg.Client.LogFile,
		})
	}
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f *clientFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Client.Addr = f.addr
	}
	if changed("name") {
		cfg.Client.Username = f.name
	}
	if changed("tick-rate") {
		cfg.Client.TickRate = f.tickRate
	}
	if changed("frame-rate") {
		cfg.Client.FrameRate = f.frameRate
	}
	if changed("log-file") {
		cfg.Client.LogFile = f.logFile
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return cfg.Validate()
}
