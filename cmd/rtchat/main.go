// Command rtchat is an interactive chat client built on the realtime client.
// Every line read from stdin is sent to the room; messages from other users
// are printed as they arrive.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdkwork-cloud/openchat-realtime/internal/telemetry"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/client"
)

// Set at build time
var version = "dev"

type options struct {
	configPath  string
	endpoint    string
	token       string
	user        string
	room        string
	requireAck  bool
	autoAck     bool
	metricsAddr string
	heartbeat   time.Duration
	telemetry   telemetry.Options
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rtchat: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "rtchat",
		Short: "Chat over a realtime websocket connection",
		Example: `  rtchat --endpoint ws://localhost:8080/ws --token dev-token
  rtchat --endpoint http://localhost:8080/ws --user alice --room general`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.clientConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := o.telemetry.NewLogger(os.Stderr)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg, &o, logger, os.Stdin, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.configPath, "config", "c", "", "TOML client configuration file")
	fs.StringVarP(&o.endpoint, "endpoint", "e", "", "websocket endpoint, for example ws://localhost:8080/ws")
	fs.StringVarP(&o.token, "token", "t", "", "connection token")
	fs.StringVarP(&o.user, "user", "u", "", "request a token for this username from the server's /token endpoint")
	fs.StringVarP(&o.room, "room", "r", "general", "room to chat in")
	fs.BoolVar(&o.requireAck, "ack", true, "wait for the server to acknowledge each message")
	fs.BoolVar(&o.autoAck, "auto-ack", false, "acknowledge messages received from others")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.DurationVar(&o.heartbeat, "heartbeat", 0, "heartbeat interval; zero keeps the configured value")
	o.telemetry.AddFlags(fs)

	return cmd
}

// clientConfig merges the config file and the flags
func (o *options) clientConfig(cmd *cobra.Command) (client.Config, error) {
	cfg := client.DefaultConfig()
	if o.configPath != "" {
		loaded, err := client.LoadConfig(o.configPath)
		if err != nil {
			return client.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = o.endpoint
	}
	if flags.Changed("token") {
		cfg.Token = o.token
	}
	if flags.Changed("auto-ack") {
		cfg.Ack.AutoAck = o.autoAck
	}
	if o.heartbeat > 0 {
		cfg.Heartbeat.Interval = o.heartbeat
		if cfg.Heartbeat.Timeout < 2*o.heartbeat {
			cfg.Heartbeat.Timeout = 2 * o.heartbeat
		}
	}

	if cfg.Token == "" && o.user == "" {
		return client.Config{}, fmt.Errorf("one of --token or --user is required")
	}
	return cfg, cfg.Validate()
}
