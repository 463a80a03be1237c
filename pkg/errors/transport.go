package errors

import (
	"fmt"
	"net/url"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport"`
	Operation string `json:"operation,omitempty"`
	Connected bool   `json:"connected"`
	Retryable bool   `json:"retryable"`
	Reason    string `json:"reason,omitempty"`
}

// ConnectionErrorData contains structured data for connection-related errors
type ConnectionErrorData struct {
	Transport  string        `json:"transport"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	CloseCode  int           `json:"close_code,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Retryable  bool          `json:"retryable"`
	Reason     string        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

func reason(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// endpointHost strips query parameters so tokens never end up in error data
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}

// TransportError creates a generic transport error
func TransportError(transport, operation string, cause error) Error {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeTransportError, message, cause).WithData(&TransportErrorData{
		Transport: transport,
		Operation: operation,
		Retryable: true,
		Reason:    reason(cause),
	})
}

// ConnectionFailed creates an error for a failed dial
func ConnectionFailed(transport, endpoint string, cause error) Error {
	host := endpointHost(endpoint)
	message := fmt.Sprintf("failed to connect via %s", transport)
	if host != "" {
		message = fmt.Sprintf("failed to connect to %s via %s", host, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeConnectionFailed, message, cause).WithData(&ConnectionErrorData{
		Transport: transport,
		Endpoint:  host,
		Retryable: true,
		Reason:    reason(cause),
	})
}

// ConnectionLost creates an error for a connection that closed underneath us
func ConnectionLost(transport, endpoint string, closeCode int, cause error) Error {
	host := endpointHost(endpoint)
	message := fmt.Sprintf("lost connection via %s", transport)
	if host != "" {
		message = fmt.Sprintf("lost connection to %s via %s", host, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return newCoded(CodeConnectionLost, message, cause).WithData(&ConnectionErrorData{
		Transport: transport,
		Endpoint:  host,
		CloseCode: closeCode,
		Retryable: true,
		Reason:    reason(cause),
	})
}

// ConnectionTimeout creates an error for a dial that did not finish in time
func ConnectionTimeout(transport, endpoint string, timeout time.Duration) Error {
	host := endpointHost(endpoint)
	message := fmt.Sprintf("connection timeout via %s", transport)
	if host != "" {
		message = fmt.Sprintf("connection timeout to %s via %s", host, transport)
	}
	if timeout > 0 {
		message = fmt.Sprintf("%s after %v", message, timeout)
	}

	return newCoded(CodeConnectionTimeout, message, nil).WithData(&ConnectionErrorData{
		Transport: transport,
		Endpoint:  host,
		Timeout:   timeout,
		Retryable: true,
		Reason:    "timeout",
	})
}

// NotConnected reports that an operation needed an open socket
func NotConnected(operation string) Error {
	return newCoded(CodeNotConnected, fmt.Sprintf("cannot %s: not connected", operation), nil).
		WithData(&TransportErrorData{
			Operation: operation,
			Retryable: true,
			Reason:    "not connected",
		})
}

// HeartbeatTimeout reports that no pong arrived within timeout
func HeartbeatTimeout(timeout time.Duration, lastPong time.Time) Error {
	message := fmt.Sprintf("no pong received within %v", timeout)
	if !lastPong.IsZero() {
		message = fmt.Sprintf("%s (last pong at %s)", message, lastPong.Format(time.RFC3339Nano))
	}
	return newCoded(CodeHeartbeatTimeout, message, nil).WithData(&ConnectionErrorData{
		Timeout:   timeout,
		Retryable: true,
		Reason:    "heartbeat timeout",
	})
}

// ReconnectExhausted reports that the scheduler gave up after attempts tries
func ReconnectExhausted(attempts int, cause error) Error {
	message := fmt.Sprintf("giving up after %d reconnection attempts", attempts)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return newCoded(CodeReconnectExhausted, message, cause).WithData(&ConnectionErrorData{
		Attempts:  attempts,
		Retryable: false,
		Reason:    reason(cause),
	})
}

// WriteFailed wraps a socket write error
func WriteFailed(transport string, cause error) Error {
	message := fmt.Sprintf("failed to write frame via %s", transport)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return newCoded(CodeWriteFailed, message, cause).WithData(&TransportErrorData{
		Transport: transport,
		Operation: "write",
		Connected: true,
		Retryable: true,
		Reason:    reason(cause),
	})
}
