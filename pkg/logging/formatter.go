package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TextFormatter writes one logfmt-style line per entry, laid out for
// following many connections in a terminal:
//
//	15:04:05.000 WRN [3f2c1a9e] client/heartbeat: pong overdue | since=45s
type TextFormatter struct {
	// TimeLayout formats the timestamp; empty omits it
	TimeLayout string
	// Color wraps the level tag in ANSI colors
	Color bool
	// IDLength truncates the connection ID; zero keeps it whole
	IDLength int
}

// NewTextFormatter returns a formatter with millisecond times and 8-char
// connection IDs
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimeLayout: "15:04:05.000", IDLength: 8}
}

var levelTags = map[Level]string{
	DebugLevel: "DBG",
	InfoLevel:  "INF",
	WarnLevel:  "WRN",
	ErrorLevel: "ERR",
	FatalLevel: "FTL",
}

var levelColors = map[Level]string{
	DebugLevel: "\033[90m",
	InfoLevel:  "\033[36m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
	FatalLevel: "\033[35m",
}

// Format implements Formatter
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var b strings.Builder

	if f.TimeLayout != "" {
		b.WriteString(entry.Timestamp.Format(f.TimeLayout))
		b.WriteByte(' ')
	}

	tag, ok := levelTags[entry.Level]
	if !ok {
		tag = entry.Level.String()
	}
	if f.Color {
		tag = levelColors[entry.Level] + tag + "\033[0m"
	}
	b.WriteString(tag)
	b.WriteByte(' ')

	if id := entry.ConnectionID; id != "" {
		if f.IDLength > 0 && len(id) > f.IDLength {
			id = id[:f.IDLength]
		}
		b.WriteString("[" + id + "] ")
	}

	// The scope moves component and operation out of the field list.
	hidden := map[string]bool{connectionKey: true}
	if entry.Component != "" {
		hidden["component"] = true
		b.WriteString(entry.Component)
		if entry.Operation != "" {
			hidden["operation"] = true
			b.WriteString("/" + entry.Operation)
		}
		b.WriteString(": ")
	}

	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		if !hidden[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			b.WriteString(" " + k + "=" + logfmtValue(entry.Fields[k]))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// logfmtValue renders v, quoting it when it would not survive as a bare word
func logfmtValue(v interface{}) string {
	var s string
	switch val := plainValue(v).(type) {
	case string:
		s = val
	default:
		s = fmt.Sprint(val)
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

// plainValue converts values that do not print or marshal well on their own
func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case error:
		return val.Error()
	case time.Duration:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

// JSONFormatter writes one JSON object per entry. Fields share the top level
// with level, message and timestamp, which fields cannot overwrite.
type JSONFormatter struct {
	// TimeLayout formats the timestamp; empty omits it
	TimeLayout string
}

// NewJSONFormatter returns a formatter with RFC 3339 millisecond UTC times
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimeLayout: "2006-01-02T15:04:05.000Z07:00"}
}

// Format implements Formatter
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		data[k] = plainValue(v)
	}

	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if f.TimeLayout != "" {
		data["timestamp"] = entry.Timestamp.UTC().Format(f.TimeLayout)
	}

	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}
