// Package protocol defines the wire frame exchanged between the realtime
// client and the messaging backend.
//
// Every message on the socket is a single JSON text frame:
//
//	{
//	    "event": "chat",
//	    "payload": {"text": "hi"},
//	    "messageId": "6f1c...",
//	    "timestamp": 1717000000000,
//	    "priority": "high",
//	    "expiryTime": 1717000300000
//	}
//
// Only event and timestamp are always present. Timestamps and expiry times
// are Unix milliseconds. The payload is opaque to the transport and is kept
// as raw JSON until an application handler decodes it.
//
// # Reserved Events
//
// Three event names are handled by the transport itself and never reach
// application subscribers:
//
//   - ping: heartbeat probe carrying {timestamp, sequence}
//   - pong: heartbeat reply echoing the probe payload
//   - message:ack: acknowledgment carrying {messageId, status, timestamp}
//
// # Priorities
//
// Frames buffered while the connection is down are drained high first, then
// normal, then low. A frame without a priority is treated as normal.
package protocol
