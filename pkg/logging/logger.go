// Package logging provides the structured logger used across the realtime
// client and its development server. Entries carry typed fields, optional
// connection scoping and structured error context, and are rendered by a
// pluggable Formatter.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	// DebugLevel is for frame-level tracing
	DebugLevel Level = iota - 1
	// InfoLevel is for connection lifecycle messages
	InfoLevel
	// WarnLevel is for recoverable problems such as a dropped socket
	WarnLevel
	// ErrorLevel is for failures that need attention
	ErrorLevel
	// FatalLevel terminates the program after logging
	FatalLevel
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a 64-bit integer field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Event names the wire event a log line is about
func Event(name string) Field {
	return Field{Key: "event", Value: name}
}

// MessageID names the frame a log line is about
func MessageID(id string) Field {
	return Field{Key: "message_id", Value: id}
}

// Component tags the subsystem that produced the entry
func Component(name string) Field {
	return Field{Key: "component", Value: name}
}

// Operation tags the operation in progress
func Operation(name string) Field {
	return Field{Key: "operation", Value: name}
}

// Logger is the interface for structured logging
type Logger interface {
	// Debug logs a debug message with fields
	Debug(msg string, fields ...Field)
	// Info logs an info message with fields
	Info(msg string, fields ...Field)
	// Warn logs a warning message with fields
	Warn(msg string, fields ...Field)
	// Error logs an error message with fields
	Error(msg string, fields ...Field)
	// Fatal logs a fatal message with fields and exits
	Fatal(msg string, fields ...Field)

	// WithFields returns a new logger with additional fields
	WithFields(fields ...Field) Logger
	// WithContext returns a new logger carrying the connection ID found in ctx
	WithContext(ctx context.Context) Logger
	// WithError returns a new logger with error context
	WithError(err error) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)
	// GetLevel returns the current log level
	GetLevel() Level
}

// Entry represents a log entry
type Entry struct {
	Level        Level
	Message      string
	Fields       map[string]interface{}
	Timestamp    time.Time
	ConnectionID string
	Component    string
	Operation    string
}

// Formatter formats log entries
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

const connectionKey = "connection_id"

type baseLogger struct {
	mu        sync.RWMutex
	level     Level
	output    io.Writer
	formatter Formatter
	fields    map[string]interface{}
	// writeMu is shared by every logger derived through WithFields so
	// concurrent writers never interleave partial lines.
	writeMu *sync.Mutex
}

// New creates a new structured logger
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}

	return &baseLogger{
		level:     InfoLevel,
		output:    output,
		formatter: formatter,
		fields:    make(map[string]interface{}),
		writeMu:   &sync.Mutex{},
	}
}

// Discard returns a logger that drops every entry. It is the default for
// library types constructed without an explicit logger.
func Discard() Logger {
	l := New(io.Discard, NewTextFormatter())
	l.SetLevel(FatalLevel + 1)
	return l
}

func (l *baseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

func (l *baseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

func (l *baseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

func (l *baseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

func (l *baseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields...)
	os.Exit(1)
}

// WithFields returns a new logger with additional fields
func (l *baseLogger) WithFields(fields ...Field) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}

	return &baseLogger{
		level:     l.level,
		output:    l.output,
		formatter: l.formatter,
		fields:    newFields,
		writeMu:   l.writeMu,
	}
}

// WithContext returns a new logger with context fields
func (l *baseLogger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := ConnectionIDFromContext(ctx); id != "" {
		fields = append(fields, String(connectionKey, id))
	}
	return l.WithFields(fields...)
}

// WithError returns a new logger with error context
func (l *baseLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}

	if rtErr, ok := rterrors.As(err); ok {
		fields = append(fields,
			Int("error_code", rtErr.Code()),
			String("error_name", rterrors.GetErrorCodeName(rtErr.Code())),
			String("error_category", string(rtErr.Category())),
			String("error_severity", string(rtErr.Severity())),
		)

		if ctx := rtErr.Context(); ctx != nil {
			if ctx.ConnectionID != "" {
				fields = append(fields, String(connectionKey, ctx.ConnectionID))
			}
			if ctx.MessageID != "" {
				fields = append(fields, MessageID(ctx.MessageID))
			}
			if ctx.Component != "" {
				fields = append(fields, Component(ctx.Component))
			}
			if ctx.Operation != "" {
				fields = append(fields, Operation(ctx.Operation))
			}
		}
	}

	return l.WithFields(fields...)
}

// SetLevel sets the minimum log level
func (l *baseLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *baseLogger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *baseLogger) log(level Level, msg string, fields ...Field) {
	l.mu.RLock()
	if level < l.level {
		l.mu.RUnlock()
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Timestamp: time.Now(),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	l.mu.RUnlock()

	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	if id, ok := entry.Fields[connectionKey].(string); ok {
		entry.ConnectionID = id
	}
	if component, ok := entry.Fields["component"].(string); ok {
		entry.Component = component
	}
	if operation, ok := entry.Fields["operation"].(string); ok {
		entry.Operation = operation
	}

	data, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format log entry: %v\n", err)
		return
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.output.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log entry: %v\n", err)
	}
}

type contextKey string

const connectionIDKey contextKey = "connection_id"

// ContextWithConnectionID returns a context carrying a connection ID
func ContextWithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionIDFromContext extracts the connection ID from a context
func ConnectionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(connectionIDKey).(string); ok {
		return id
	}
	return ""
}
