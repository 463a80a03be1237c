// Command rtserver runs the development websocket backend
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdkwork-cloud/openchat-realtime/internal/telemetry"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/server"
)

// Set at build time
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rtserver: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		path       string
		tokens     map[string]string
		origins    []string
		noPong     bool
		noAutoAck  bool
		telem      telemetry.Options
	)

	cmd := &cobra.Command{
		Use:   "rtserver",
		Short: "Development backend for the realtime client",
		Long: `rtserver accepts websocket connections, answers heartbeats,
acknowledges frames that carry a messageId and relays every
application frame to the other connected clients.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if configPath != "" {
				loaded, err := server.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("path") {
				cfg.Path = path
			}
			if flags.Changed("origin") {
				cfg.AllowedOrigins = origins
			}
			if flags.Changed("no-pong") {
				cfg.DisablePong = noPong
			}
			if flags.Changed("no-auto-ack") {
				cfg.DisableAutoAck = noAutoAck
			}
			if len(tokens) > 0 {
				if cfg.Tokens == nil {
					cfg.Tokens = make(map[string]string, len(tokens))
				}
				for token, user := range tokens {
					cfg.Tokens[token] = user
				}
			}

			logger, err := telem.NewLogger(os.Stderr)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, &telem, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	fs.StringVar(&addr, "addr", ":8080", "listen address")
	fs.StringVar(&path, "path", "/ws", "websocket endpoint path")
	fs.StringToStringVar(&tokens, "token", nil, "static token=username pairs accepted for connections")
	fs.StringSliceVar(&origins, "origin", nil, "allowed browser origins")
	fs.BoolVar(&noPong, "no-pong", false, "never answer pings, to simulate a half-open link")
	fs.BoolVar(&noAutoAck, "no-auto-ack", false, "never acknowledge frames")
	telem.AddFlags(fs)

	return cmd
}

func run(parent context.Context, cfg server.Config, telem *telemetry.Options, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := telem.Start("rtserver", version, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := setup.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}

	if len(cfg.Tokens) == 0 {
		logger.Warn("no static tokens configured; clients must obtain one from POST /token")
	}
	return srv.ListenAndServe(ctx)
}
