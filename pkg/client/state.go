package client

import "time"

// State is the connection state of a Client
type State int

const (
	// StateDisconnected means no socket is open and no attempt is running.
	StateDisconnected State = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the socket is open and the heartbeat is running.
	StateConnected

	// StateReconnecting means a scheduled retry fired and a dial is about to start.
	StateReconnecting

	// StateError means reconnection attempts are exhausted. Connect restarts.
	StateError
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// HeartbeatStatus summarizes recent pong observations
type HeartbeatStatus int

const (
	HeartbeatHealthy HeartbeatStatus = iota
	HeartbeatWarning
	HeartbeatError
)

func (s HeartbeatStatus) String() string {
	switch s {
	case HeartbeatHealthy:
		return "healthy"
	case HeartbeatWarning:
		return "warning"
	case HeartbeatError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionInfo is a snapshot of the client, computed on demand
type ConnectionInfo struct {
	State              State
	ReconnectAttempts  int
	LastConnectedAt    time.Time
	LastDisconnectedAt time.Time
	HeartbeatStatus    HeartbeatStatus
	LastHeartbeatRTT   time.Duration
	QueueSize          int
	PendingAcks        int
}
