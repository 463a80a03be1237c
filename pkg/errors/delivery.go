package errors

import (
	"fmt"
	"time"
)

// DeliveryErrorData describes the frame a delivery failure is about
type DeliveryErrorData struct {
	MessageID string        `json:"message_id,omitempty"`
	Event     string        `json:"event"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Expiry    time.Time     `json:"expiry,omitempty"`
	Capacity  int           `json:"capacity,omitempty"`
}

// ErrClientClosed is returned by every operation on a closed client.
var ErrClientClosed = newCoded(CodeClientClosed, "client closed", nil)

// AckTimeout reports that messageID was not acknowledged within timeout
func AckTimeout(messageID, event string, timeout time.Duration) Error {
	return newCoded(CodeAckTimeout,
		fmt.Sprintf("no acknowledgment for %s (%s) within %v", messageID, event, timeout), nil).
		WithData(&DeliveryErrorData{
			MessageID: messageID,
			Event:     event,
			Timeout:   timeout,
		})
}

// MessageExpired reports a frame dropped because its expiry passed before it
// could be written
func MessageExpired(messageID, event string, expiry time.Time) Error {
	return newCoded(CodeMessageExpired,
		fmt.Sprintf("%s frame expired at %s before transmission", event, expiry.Format(time.RFC3339Nano)), nil).
		WithData(&DeliveryErrorData{
			MessageID: messageID,
			Event:     event,
			Expiry:    expiry,
		})
}

// QueueFull reports a frame evicted from an outbound buffer at capacity
func QueueFull(messageID, event string, capacity int) Error {
	return newCoded(CodeQueueFull,
		fmt.Sprintf("%s frame evicted from full outbound buffer (capacity %d)", event, capacity), nil).
		WithData(&DeliveryErrorData{
			MessageID: messageID,
			Event:     event,
			Capacity:  capacity,
		})
}
