package client

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

// Option configures a Client's collaborators
type Option func(*Client)

// WithDialer replaces the websocket dialer
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithClock replaces the wall clock, typically with a fake in tests
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m observability.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used for dial and acknowledgment spans
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithTokenProvider resolves the connection token on every attempt,
// overriding Config.Token
func WithTokenProvider(p auth.TokenProvider) Option {
	return func(c *Client) {
		c.tokens = p
	}
}

// WithRandom sets the jitter source. fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(c *Client) {
		c.random = fn
	}
}

// WithIDGenerator sets how message IDs are created
func WithIDGenerator(fn func() string) Option {
	return func(c *Client) {
		c.newID = fn
	}
}

// SendOption configures a single Send
type SendOption func(*sendOptions)

type sendOptions struct {
	requireAck bool
	priority   protocol.Priority
	expiry     time.Time
	ttl        time.Duration
	ackTimeout time.Duration
}

// WithRequireAck makes the delivery wait for a message:ack from the peer
func WithRequireAck() SendOption {
	return func(o *sendOptions) {
		o.requireAck = true
	}
}

// WithPriority sets the buffer priority class
func WithPriority(p protocol.Priority) SendOption {
	return func(o *sendOptions) {
		o.priority = p
	}
}

// WithExpiry drops the frame if it is still unsent at t
func WithExpiry(t time.Time) SendOption {
	return func(o *sendOptions) {
		o.expiry = t
	}
}

// WithTTL drops the frame if it is still unsent d after Send
func WithTTL(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.ttl = d
	}
}

// WithAckTimeout overrides Config.Ack.Timeout for this frame
func WithAckTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.ackTimeout = d
	}
}
