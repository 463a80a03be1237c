// Package errors provides structured error handling for the realtime client.
// Every error carries a numeric code, a category and a severity so callers
// can tell a per-message delivery failure from a connection-health problem
// without string matching.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category represents the type/category of an error for classification and handling
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "auth"
	CategoryTransport  Category = "transport"
	CategoryProtocol   Category = "protocol"
	CategoryDelivery   Category = "delivery"
	CategoryTimeout    Category = "timeout"
	CategoryLifecycle  Category = "lifecycle"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context describes where and when an error occurred
type Context struct {
	ConnectionID string    `json:"connection_id,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	Event        string    `json:"event,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Component    string    `json:"component,omitempty"`
	Operation    string    `json:"operation,omitempty"`
}

// Error defines the interface for all structured errors in this module
type Error interface {
	error

	// Code returns the numeric error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Details returns detailed technical description for debugging
	Details() string

	// Data returns structured error data for programmatic handling
	Data() interface{}

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context information
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) Error

	// WithDetail returns a new error with additional detail
	WithDetail(detail string) Error

	// WithData returns a new error with structured data
	WithData(data interface{}) Error

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error

	// ToJSON returns the error as a JSON-serializable map
	ToJSON() map[string]interface{}
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int {
	return e.code
}

func (e *baseError) Message() string {
	return e.message
}

func (e *baseError) Details() string {
	return e.details
}

func (e *baseError) Data() interface{} {
	return e.data
}

func (e *baseError) Category() Category {
	return e.category
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) Context() *Context {
	return e.context
}

// WithContext returns a copy carrying ctx
func (e *baseError) WithContext(ctx *Context) Error {
	newErr := *e
	newErr.context = ctx
	return &newErr
}

// WithDetail returns a copy with detail appended to the existing details
func (e *baseError) WithDetail(detail string) Error {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

func (e *baseError) WithData(data interface{}) Error {
	newErr := *e
	newErr.data = data
	return &newErr
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a structured error with the same code, so
// errors.Is works against the sentinel values even after WithContext copies.
func (e *baseError) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return t.Code() == e.code
}

// ToJSON returns the error as a JSON-serializable map
func (e *baseError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     e.code,
		"name":     GetErrorCodeName(e.code),
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}

	if e.details != "" {
		result["details"] = e.details
	}
	if e.data != nil {
		result["data"] = e.data
	}
	if e.context != nil {
		result["context"] = e.context
	}
	if e.cause != nil {
		result["cause"] = e.cause.Error()
	}

	return result
}

func (e *baseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// NewError creates a new Error with the specified parameters
func NewError(code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// NewErrorf creates a new Error with a formatted message
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) Error {
	return NewError(code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError wraps an existing error as an Error
func WrapError(err error, code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// WrapErrorf wraps an existing error with a formatted message
func WrapErrorf(err error, code int, category Category, severity Severity, format string, args ...interface{}) Error {
	return WrapError(err, code, fmt.Sprintf(format, args...), category, severity)
}

// As extracts the first structured Error from err's chain
func As(err error) (Error, bool) {
	if err == nil {
		return nil, false
	}
	var target Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if e, ok := As(err); ok {
		return e.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if e, ok := As(err); ok {
		return e.Code() == code
	}
	return false
}

// IsRetryable reports whether the failure is expected to clear up on its own,
// such as a dropped connection or a timed out dial.
func IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Code() {
	case CodeTransportError, CodeConnectionFailed, CodeConnectionLost,
		CodeConnectionTimeout, CodeHeartbeatTimeout, CodeNotConnected:
		return true
	}
	return false
}
