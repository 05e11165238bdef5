// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/chatty/internal/config"
	"github.com/jeranaias/chatty/internal/logging"
	"github.com/jeranaias/chatty/internal/server"
)

type serveFlags struct {
	addr      string
	capacity  int
	maxLine   int
	rate      float64
	burst     int
	logLevel  string
	logFormat string
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		Long: `Run the broadcast chat server.

Each client must first send "username:<name>"; the server answers
"Welcome to the chat, <name>!" and from then on relays every non-blank line
as "<name>: <line>" to all registered clients, the sender included.

Examples:
  chatty serve
  chatty serve --addr 0.0.0.0:9000 --log-format json
  chatty serve --rate 5 --burst 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return configError("serve", err)
			}
			if err := f.apply(cmd, cfg); err != nil {
				return configError("serve", err)
			}

			logger, err := logging.NewServer(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return configError("serve", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server.Addr).
				WithLogger(logger).
				WithCapacity(cfg.Server.Capacity).
				WithMaxLineLength(cfg.Server.MaxLineLength).
				WithRateLimit(cfg.Server.MessagesPerSecond, cfg.Server.Burst)

			err = srv.ListenAndServe(ctx)
			if errors.Is(err, server.ErrServerClosed) {
				return nil
			}
			logger.Error("SERVER_FAILED", zap.Error(err))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.addr, "addr", "a", "", "listen address (host:port)")
	flags.IntVar(&f.capacity, "capacity", 0, "messages retained for slow receivers")
	flags.IntVar(&f.maxLine, "max-line", 0, "longest accepted line in bytes")
	flags.Float64Var(&f.rate, "rate", 0, "lines per second per connection (0 = unlimited)")
	flags.IntVar(&f.burst, "burst", 0, "burst size when rate limited")
	flags.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", "", "log format (console, json)")
	return cmd
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if changed("capacity") {
		cfg.Server.Capacity = f.capacity
	}
	if changed("max-line") {
		cfg.Server.MaxLineLength = f.maxLine
	}
	if changed("rate") {
		cfg.Server.MessagesPerSecond = f.rate
	}
	if changed("burst") {
		cfg.Server.Burst = f.burst
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return cfg.Validate()
}
