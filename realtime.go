package realtime

import (
	"github.com/sdkwork-cloud/openchat-realtime/pkg/client"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/server"
)

// Version of the module
const Version = "0.1.0"

// Core types
type (
	Client   = client.Client
	Config   = client.Config
	Delivery = client.Delivery
	State    = client.State
	Frame    = protocol.Frame
	Priority = protocol.Priority
)

// Connection states
const (
	StateConnecting   = client.StateConnecting
	StateConnected    = client.StateConnected
	StateDisconnected = client.StateDisconnected
	StateReconnecting = client.StateReconnecting
	StateError        = client.StateError
)

// Frame priorities
const (
	PriorityHigh   = protocol.PriorityHigh
	PriorityNormal = protocol.PriorityNormal
	PriorityLow    = protocol.PriorityLow
)

// Acknowledgment statuses
const (
	AckDelivered = protocol.AckDelivered
	AckRead      = protocol.AckRead
)

// Construction
var (
	// NewClient creates a realtime client
	NewClient = client.New
	// DefaultConfig returns the default client configuration
	DefaultConfig = client.DefaultConfig
	// LoadConfig reads a TOML client configuration
	LoadConfig = client.LoadConfig

	// NewServer creates the development backend
	NewServer = server.New
)

// Client options
var (
	WithDialer        = client.WithDialer
	WithClock         = client.WithClock
	WithLogger        = client.WithLogger
	WithMetrics       = client.WithMetrics
	WithTracer        = client.WithTracer
	WithTokenProvider = client.WithTokenProvider
)

// Send options
var (
	WithRequireAck = client.WithRequireAck
	WithPriority   = client.WithPriority
	WithExpiry     = client.WithExpiry
	WithTTL        = client.WithTTL
	WithAckTimeout = client.WithAckTimeout
)

// Handle subscribes fn to frames named event, decoding each payload into T
func Handle[T any](c *Client, event string, fn func(T, Frame)) *client.Subscription {
	return client.Handle(c, event, fn)
}
