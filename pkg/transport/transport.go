package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Close codes used by the client. Codes 4000-4999 are reserved for
// applications by RFC 6455.
const (
	CloseNormal           = 1000
	CloseGoingAway        = 1001
	CloseAbnormal         = 1006
	CloseHeartbeatTimeout = 4000
)

// Conn is one open message-oriented socket
type Conn interface {
	// ReadMessage blocks until the next text or binary message arrives
	ReadMessage() ([]byte, error)
	// WriteMessage sends data as a single text message
	WriteMessage(data []byte) error
	// Close sends a close frame with code and reason, then releases the
	// socket. Calling Close more than once is a no-op.
	Close(code int, reason string) error
	// RemoteAddr describes the peer for logging
	RemoteAddr() string
}

// Dialer opens connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url)
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// CloseError is returned by ReadMessage once the peer has closed the socket
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("websocket closed: %d %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("websocket closed: %d", e.Code)
}

// ErrClosed is returned by operations on a Conn that was closed locally
var ErrClosed = errors.New("transport: connection closed")

// CloseCode extracts the close code from err, or CloseAbnormal when the
// socket ended without a close frame.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CloseAbnormal
}

// Config tunes the websocket dialer and the connections it creates
type Config struct {
	DialTimeout       time.Duration `json:"dial_timeout" toml:"dial_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout" toml:"write_timeout"`
	CloseTimeout      time.Duration `json:"close_timeout" toml:"close_timeout"`
	ReadLimit         int64         `json:"read_limit" toml:"read_limit"`
	ReadBufferSize    int           `json:"read_buffer_size" toml:"read_buffer_size"`
	WriteBufferSize   int           `json:"write_buffer_size" toml:"write_buffer_size"`
	EnableCompression bool          `json:"enable_compression" toml:"enable_compression"`
	Header            http.Header   `json:"-" toml:"-"`
}

// DefaultConfig returns conservative defaults for browser-like chat traffic
func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		CloseTimeout:    time.Second,
		ReadLimit:       1 << 20,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}
