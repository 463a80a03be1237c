package protocol

// Reserved event names handled by the transport
const (
	EventPing = "ping"
	EventPong = "pong"
	EventAck  = "message:ack"
)

// IsReserved reports whether event is a transport control event
func IsReserved(event string) bool {
	switch event {
	case EventPing, EventPong, EventAck:
		return true
	}
	return false
}

// AckStatus is how far the receiver got with a frame
type AckStatus string

const (
	AckDelivered AckStatus = "delivered"
	AckRead      AckStatus = "read"
)

// Valid reports whether s is a known status
func (s AckStatus) Valid() bool {
	return s == AckDelivered || s == AckRead
}

// AckPayload is the payload of a message:ack frame
type AckPayload struct {
	MessageID string    `json:"messageId"`
	Status    AckStatus `json:"status"`
	Timestamp int64     `json:"timestamp"`
}

// PingPayload is the payload of a ping frame. A pong echoes it back.
type PingPayload struct {
	Timestamp int64  `json:"timestamp"`
	Sequence  uint64 `json:"sequence"`
}

// PongPayload is the payload of a pong frame
type PongPayload = PingPayload
