package server

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/ws", cfg.Path)
	assert.Equal(t, time.Hour, cfg.TokenExpiry)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = "ws"
	cfg.TokenExpiry = 0
	cfg.ShutdownTimeout = -time.Second
	cfg.TokenCleanupInterval = -time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidConfig))
	for _, field := range []string{"path", "token_expiry", "token_cleanup_interval", "shutdown_timeout"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr = "127.0.0.1:9000"
path = "/realtime"
allowed_origins = ["https://chat.example.com"]
disable_pong = true

[tokens]
dev-token = "alice"

[rate_limit]
frames_per_minute = 120
burst_size = 10
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/realtime", cfg.Path)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.DisablePong)
	assert.Equal(t, "alice", cfg.Tokens["dev-token"])
	assert.Equal(t, 120, cfg.RateLimit.FramesPerMinute)
	assert.Equal(t, 10, cfg.RateLimit.BurstSize)
	assert.Equal(t, time.Hour, cfg.TokenExpiry)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("adress = \":80\"\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adress")
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		host    string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "chat.example.com", "", true},
		{"same host", nil, "chat.example.com", "https://chat.example.com", true},
		{"cross host", nil, "chat.example.com", "https://evil.example.com", false},
		{"exact match", []string{"https://app.example.com"}, "api.example.com", "https://app.example.com", true},
		{"not listed", []string{"https://app.example.com"}, "api.example.com", "https://other.example.com", false},
		{"wildcard", []string{"*"}, "api.example.com", "https://anything.example.com", true},
		{"localhost any port", []string{"http://localhost"}, "api.example.com", "http://localhost:3000", true},
		{"loopback ip", []string{"http://localhost:5173"}, "api.example.com", "http://127.0.0.1:8080", true},
		{"localhost lookalike", []string{"http://localhost"}, "api.example.com", "http://localhost.evil.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker{allowed: tt.allowed}.check(r))
		})
	}
}
