package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
)

// Frame is one message on the wire
type Frame struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Priority   Priority        `json:"priority,omitempty"`
	ExpiryTime int64           `json:"expiryTime,omitempty"`
}

// NewFrame marshals payload and returns an unstamped frame for event.
// A nil payload produces a frame without a payload field.
func NewFrame(event string, payload interface{}) (*Frame, error) {
	if event == "" {
		return nil, rterrors.InvalidFrame("event", "must not be empty")
	}

	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, rterrors.FrameEncodeError(event, err)
		}
		raw = data
	}

	return &Frame{Event: event, Payload: raw}, nil
}

// RequiresAck reports whether the sender is waiting for an acknowledgment.
// Control frames carry a message ID too but are never acknowledged.
func (f *Frame) RequiresAck() bool {
	return f.MessageID != "" && !IsReserved(f.Event)
}

// Time returns the frame timestamp
func (f *Frame) Time() time.Time {
	return FromMillis(f.Timestamp)
}

// Expiry returns the absolute expiry, or the zero time when the frame never expires
func (f *Frame) Expiry() time.Time {
	if f.ExpiryTime == 0 {
		return time.Time{}
	}
	return FromMillis(f.ExpiryTime)
}

// Expired reports whether the frame carries an expiry that is not after now
func (f *Frame) Expired(now time.Time) bool {
	return f.ExpiryTime != 0 && f.ExpiryTime <= Millis(now)
}

// DecodePayload unmarshals the payload into v
func (f *Frame) DecodePayload(v interface{}) error {
	payload := f.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return rterrors.FrameParseError(payload, err).
			WithContext(&rterrors.Context{
				Event:     f.Event,
				MessageID: f.MessageID,
				Timestamp: time.Now(),
				Component: "protocol",
				Operation: "decode_payload",
			})
	}
	return nil
}

// Encode validates f and serializes it as a JSON text frame
func Encode(f *Frame) ([]byte, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, rterrors.FrameEncodeError(f.Event, err)
	}
	return data, nil
}

// Decode parses a JSON text frame. Failures are returned as structured
// errors with CodeFrameParse or CodeInvalidFrame.
func Decode(data []byte) (*Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, rterrors.FrameParseError(data, errNotObject)
	}

	var f Frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, rterrors.FrameParseError(data, err)
	}
	if bytes.Equal(f.Payload, []byte("null")) {
		f.Payload = nil
	}
	if err := validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func validate(f *Frame) error {
	if f == nil {
		return rterrors.InvalidFrame("frame", "must not be nil")
	}
	if f.Event == "" {
		return rterrors.InvalidFrame("event", "must not be empty")
	}
	if !f.Priority.Valid() {
		return rterrors.InvalidFrame("priority", "must be one of high, normal, low")
	}
	if f.Timestamp < 0 || f.ExpiryTime < 0 {
		return rterrors.InvalidFrame("timestamp", "must not be negative")
	}
	return nil
}

var errNotObject = errors.New("frame is not a JSON object")

// Millis converts t to Unix milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts Unix milliseconds to a time.Time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
