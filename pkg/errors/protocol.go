package errors

import "fmt"

// FrameErrorData carries a truncated copy of the offending input
type FrameErrorData struct {
	Raw    string `json:"raw,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

const maxRawSnippet = 256

func snippet(raw []byte) string {
	if len(raw) > maxRawSnippet {
		return string(raw[:maxRawSnippet]) + "..."
	}
	return string(raw)
}

// FrameParseError reports inbound data that is not a JSON frame
func FrameParseError(raw []byte, cause error) Error {
	message := "failed to parse frame"
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return newCoded(CodeFrameParse, message, cause).WithData(&FrameErrorData{
		Raw:    snippet(raw),
		Reason: reason(cause),
	})
}

// InvalidFrame reports a decoded frame that breaks a frame rule
func InvalidFrame(field, why string) Error {
	return newCoded(CodeInvalidFrame, fmt.Sprintf("invalid frame: %s %s", field, why), nil).
		WithData(&FrameErrorData{
			Field:  field,
			Reason: why,
		})
}

// FrameEncodeError wraps a marshalling failure for an outbound frame
func FrameEncodeError(event string, cause error) Error {
	return newCoded(CodeFrameEncode, fmt.Sprintf("failed to encode %s frame: %s", event, reason(cause)), cause).
		WithData(&FrameErrorData{
			Field:  "payload",
			Reason: reason(cause),
		})
}
