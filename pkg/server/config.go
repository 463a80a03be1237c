package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// Config configures the development backend
type Config struct {
	// Addr is the listen address used by ListenAndServe
	Addr string `json:"addr" toml:"addr"`
	// Path is where the websocket endpoint is mounted
	Path string `json:"path" toml:"path"`

	// AllowedOrigins lists browser origins that may connect. Requests without
	// an Origin header are always accepted. An empty list accepts only
	// same-host origins.
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`

	// Tokens maps fixed tokens to usernames, in addition to tokens issued
	// by POST /token
	Tokens      map[string]string `json:"-" toml:"tokens"`
	TokenExpiry time.Duration     `json:"token_expiry" toml:"token_expiry"`

	// TokenCleanupInterval is how often Serve drops expired and revoked
	// issued tokens. Zero disables the sweep.
	TokenCleanupInterval time.Duration `json:"token_cleanup_interval" toml:"token_cleanup_interval"`

	// DisablePong stops answering pings, which looks like a half-open link
	// to clients
	DisablePong bool `json:"disable_pong" toml:"disable_pong"`
	// DisableAutoAck stops acknowledging frames that carry a message ID
	DisableAutoAck bool `json:"disable_auto_ack" toml:"disable_auto_ack"`

	RateLimit       auth.RateLimitConfig `json:"rate_limit" toml:"rate_limit"`
	Connection      transport.Config     `json:"connection" toml:"connection"`
	ShutdownTimeout time.Duration        `json:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DefaultConfig returns the development defaults
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		Path:                 "/ws",
		TokenExpiry:          time.Hour,
		TokenCleanupInterval: 5 * time.Minute,
		RateLimit: auth.RateLimitConfig{
			FramesPerMinute: 600,
			BurstSize:       50,
		},
		Connection:      transport.DefaultConfig(),
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	var errs []rterrors.Error
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, rterrors.InvalidConfig("path", c.Path, "must start with /"))
	}
	if c.TokenExpiry <= 0 {
		errs = append(errs, rterrors.InvalidConfig("token_expiry", c.TokenExpiry, "must be positive"))
	}
	if c.TokenCleanupInterval < 0 {
		errs = append(errs, rterrors.InvalidConfig("token_cleanup_interval", c.TokenCleanupInterval, "must not be negative"))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, rterrors.InvalidConfig("shutdown_timeout", c.ShutdownTimeout, "must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return rterrors.CombineValidationErrors(errs)
}

// LoadConfig reads a TOML file over DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, rterrors.InvalidConfig(undecoded[0].String(), nil, "unknown key")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
