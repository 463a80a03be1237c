package errors

// Transport errors (1000 to 1099)
const (
	CodeTransportError     int = 1000 // Generic transport error
	CodeConnectionFailed   int = 1001 // Failed to establish connection
	CodeConnectionLost     int = 1002 // Connection lost during operation
	CodeConnectionTimeout  int = 1003 // Dial timed out
	CodeNotConnected       int = 1004 // Operation needs an open socket
	CodeHeartbeatTimeout   int = 1005 // No pong observed within the heartbeat timeout
	CodeReconnectExhausted int = 1006 // Maximum reconnection attempts reached
)

// Protocol errors (1100 to 1199)
const (
	CodeFrameParse   int = 1100 // Inbound data is not a valid frame
	CodeInvalidFrame int = 1101 // Frame is well-formed JSON but violates frame rules
	CodeFrameEncode  int = 1102 // Frame could not be serialized
)

// Delivery errors (1200 to 1299)
const (
	CodeAckTimeout     int = 1200 // No acknowledgment before the deadline
	CodeMessageExpired int = 1201 // Frame expired while buffered
	CodeQueueFull      int = 1202 // Frame evicted from a full outbound buffer
	CodeWriteFailed    int = 1203 // Socket write failed
)

// Lifecycle and validation errors (1300 to 1399)
const (
	CodeClientClosed    int = 1300 // Client was closed
	CodeInvalidConfig   int = 1301 // Configuration failed validation
	CodeInvalidArgument int = 1302 // Caller supplied an invalid argument
)

// Auth errors (1400 to 1499)
const (
	CodeUnauthorized int = 1400 // Token missing or rejected
	CodeInvalidToken int = 1401 // Token could not be obtained or is malformed
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeTransportError:     {CodeTransportError, "TransportError", "Transport error", CategoryTransport, SeverityError},
	CodeConnectionFailed:   {CodeConnectionFailed, "ConnectionFailed", "Connection failed", CategoryTransport, SeverityError},
	CodeConnectionLost:     {CodeConnectionLost, "ConnectionLost", "Connection lost", CategoryTransport, SeverityWarning},
	CodeConnectionTimeout:  {CodeConnectionTimeout, "ConnectionTimeout", "Connection timeout", CategoryTransport, SeverityError},
	CodeNotConnected:       {CodeNotConnected, "NotConnected", "Not connected", CategoryTransport, SeverityWarning},
	CodeHeartbeatTimeout:   {CodeHeartbeatTimeout, "HeartbeatTimeout", "Heartbeat timeout", CategoryTransport, SeverityError},
	CodeReconnectExhausted: {CodeReconnectExhausted, "ReconnectExhausted", "Reconnection attempts exhausted", CategoryTransport, SeverityCritical},

	CodeFrameParse:   {CodeFrameParse, "FrameParse", "Malformed frame", CategoryProtocol, SeverityWarning},
	CodeInvalidFrame: {CodeInvalidFrame, "InvalidFrame", "Invalid frame", CategoryProtocol, SeverityWarning},
	CodeFrameEncode:  {CodeFrameEncode, "FrameEncode", "Frame encoding failed", CategoryProtocol, SeverityError},

	CodeAckTimeout:     {CodeAckTimeout, "AckTimeout", "Acknowledgment timed out", CategoryTimeout, SeverityError},
	CodeMessageExpired: {CodeMessageExpired, "MessageExpired", "Message expired before transmission", CategoryDelivery, SeverityWarning},
	CodeQueueFull:      {CodeQueueFull, "QueueFull", "Message evicted from full buffer", CategoryDelivery, SeverityWarning},
	CodeWriteFailed:    {CodeWriteFailed, "WriteFailed", "Socket write failed", CategoryTransport, SeverityError},

	CodeClientClosed:    {CodeClientClosed, "ClientClosed", "Client closed", CategoryLifecycle, SeverityInfo},
	CodeInvalidConfig:   {CodeInvalidConfig, "InvalidConfig", "Invalid configuration", CategoryValidation, SeverityError},
	CodeInvalidArgument: {CodeInvalidArgument, "InvalidArgument", "Invalid argument", CategoryValidation, SeverityError},

	CodeUnauthorized: {CodeUnauthorized, "Unauthorized", "Unauthorized", CategoryAuth, SeverityError},
	CodeInvalidToken: {CodeInvalidToken, "InvalidToken", "Invalid token", CategoryAuth, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeDescription returns the description of an error code
func GetErrorCodeDescription(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Description
	}
	return "Unknown error"
}

// ListErrorCodes returns all registered error codes
func ListErrorCodes() []ErrorCodeInfo {
	codes := make([]ErrorCodeInfo, 0, len(errorCodeRegistry))
	for _, info := range errorCodeRegistry {
		codes = append(codes, info)
	}
	return codes
}

// newCoded builds an error using the registry's category and severity for code
func newCoded(code int, message string, cause error) Error {
	info, ok := errorCodeRegistry[code]
	if !ok {
		info = ErrorCodeInfo{Category: CategoryInternal, Severity: SeverityError}
	}
	if cause != nil {
		return WrapError(cause, code, message, info.Category, info.Severity)
	}
	return NewError(code, message, info.Category, info.Severity)
}
