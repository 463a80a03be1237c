package client

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// Config holds everything a Client needs besides its collaborators
type Config struct {
	// Endpoint is the ws://, wss://, http:// or https:// URL of the backend
	Endpoint string `json:"endpoint" toml:"endpoint"`
	// Token is attached to every connection URI unless a TokenProvider is set
	Token string `json:"-" toml:"token"`

	Reconnect  ReconnectConfig  `json:"reconnect" toml:"reconnect"`
	Heartbeat  HeartbeatConfig  `json:"heartbeat" toml:"heartbeat"`
	Queue      QueueConfig      `json:"queue" toml:"queue"`
	Ack        AckConfig        `json:"ack" toml:"ack"`
	Connection transport.Config `json:"connection" toml:"connection"`
}

// ReconnectConfig configures the reconnection scheduler
type ReconnectConfig struct {
	MaxAttempts  int           `json:"max_attempts" toml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" toml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" toml:"max_delay"`
	Multiplier   float64       `json:"multiplier" toml:"multiplier"`
	// Jitter is the fraction of the delay added or removed at random
	Jitter float64 `json:"jitter" toml:"jitter"`
}

// HeartbeatConfig configures the ping/pong liveness check
type HeartbeatConfig struct {
	Interval time.Duration `json:"interval" toml:"interval"`
	Timeout  time.Duration `json:"timeout" toml:"timeout"`
	// WarningFactor times Interval without a pong downgrades the status to warning
	WarningFactor float64 `json:"warning_factor" toml:"warning_factor"`
}

// QueueConfig configures the outbound buffer
type QueueConfig struct {
	Capacity int `json:"capacity" toml:"capacity"`
	// DefaultExpiry applies to frames sent without an explicit expiry. Zero disables it.
	DefaultExpiry time.Duration `json:"default_expiry" toml:"default_expiry"`
}

// AckConfig configures acknowledgments
type AckConfig struct {
	Timeout time.Duration `json:"timeout" toml:"timeout"`
	// AutoAck acknowledges inbound frames that carry a message ID with status delivered
	AutoAck bool `json:"auto_ack" toml:"auto_ack"`
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		Reconnect: ReconnectConfig{
			MaxAttempts:  5,
			InitialDelay: 1000 * time.Millisecond,
			MaxDelay:     30000 * time.Millisecond,
			Multiplier:   2,
			Jitter:       0.1,
		},
		Heartbeat: HeartbeatConfig{
			Interval:      30 * time.Second,
			Timeout:       60 * time.Second,
			WarningFactor: 1.5,
		},
		Queue: QueueConfig{
			Capacity:      1000,
			DefaultExpiry: 5 * time.Minute,
		},
		Ack: AckConfig{
			Timeout: 30 * time.Second,
		},
		Connection: transport.DefaultConfig(),
	}
}

// Validate checks every field and reports all violations at once
func (c Config) Validate() error {
	var errs []rterrors.Error

	check := func(ok bool, field string, value interface{}, constraint string) {
		if !ok {
			errs = append(errs, rterrors.InvalidConfig(field, value, constraint))
		}
	}

	check(c.Endpoint != "", "endpoint", c.Endpoint, "must not be empty")
	check(c.Reconnect.MaxAttempts >= 0, "reconnect.max_attempts", c.Reconnect.MaxAttempts, "must not be negative")
	check(c.Reconnect.InitialDelay > 0, "reconnect.initial_delay", c.Reconnect.InitialDelay, "must be positive")
	check(c.Reconnect.MaxDelay >= c.Reconnect.InitialDelay, "reconnect.max_delay", c.Reconnect.MaxDelay, "must not be below initial_delay")
	check(c.Reconnect.Multiplier >= 1, "reconnect.multiplier", c.Reconnect.Multiplier, "must be at least 1")
	check(c.Reconnect.Jitter >= 0 && c.Reconnect.Jitter < 1, "reconnect.jitter", c.Reconnect.Jitter, "must be in [0, 1)")
	check(c.Heartbeat.Interval > 0, "heartbeat.interval", c.Heartbeat.Interval, "must be positive")
	check(c.Heartbeat.Timeout > 0, "heartbeat.timeout", c.Heartbeat.Timeout, "must be positive")
	check(c.Heartbeat.WarningFactor >= 1, "heartbeat.warning_factor", c.Heartbeat.WarningFactor, "must be at least 1")
	check(c.Queue.Capacity > 0, "queue.capacity", c.Queue.Capacity, "must be positive")
	check(c.Queue.DefaultExpiry >= 0, "queue.default_expiry", c.Queue.DefaultExpiry, "must not be negative")
	check(c.Ack.Timeout > 0, "ack.timeout", c.Ack.Timeout, "must be positive")

	if len(errs) == 0 {
		return nil
	}
	return rterrors.CombineValidationErrors(errs)
}

// LoadConfig reads a TOML file over DefaultConfig. Durations are written as
// strings such as "30s". Unknown keys are rejected so typos do not silently
// fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, rterrors.InvalidConfig(undecoded[0].String(), nil, "unknown key")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
