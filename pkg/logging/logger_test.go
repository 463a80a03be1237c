package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()

	for _, want := range []string{
		"Debug message", "Info message", "Warning message", "Error message",
		"key=value", "count=42", "flag=true", `error="test error"`,
	} {
		if !strings.Contains(output, want) && !strings.Contains(output, strings.ReplaceAll(want, `"`, "")) {
			t.Errorf("Expected %q in output:\n%s", want, output)
		}
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(WarnLevel)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	output := buf.String()

	if strings.Contains(output, "Debug message") {
		t.Error("Debug message should be filtered out")
	}
	if strings.Contains(output, "Info message") {
		t.Error("Info message should be filtered out")
	}
	if !strings.Contains(output, "Warning message") {
		t.Error("Warning message should be present")
	}
	if !strings.Contains(output, "Error message") {
		t.Error("Error message should be present")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	logger = logger.WithFields(
		String("endpoint", "ws://localhost:8080/ws"),
		Event("chat"),
	)
	logger.Info("Frame sent", MessageID("m-1"))

	output := buf.String()
	if !strings.Contains(output, "endpoint=ws://localhost:8080/ws") {
		t.Error("Expected endpoint field")
	}
	if !strings.Contains(output, "event=chat") {
		t.Error("Expected event field")
	}
	if !strings.Contains(output, "message_id=m-1") {
		t.Error("Expected message_id field")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	ctx := ContextWithConnectionID(context.Background(), "c0ffee")
	logger.WithContext(ctx).Info("Connected")

	if !strings.Contains(buf.String(), "[c0ffee]") {
		t.Errorf("Expected connection ID in output: %s", buf.String())
	}
	assert.Empty(t, ConnectionIDFromContext(context.Background()))
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	err := rterrors.AckTimeout("m-42", "chat", time.Second).
		WithContext(&rterrors.Context{
			ConnectionID: "abc123",
			MessageID:    "m-42",
			Component:    "client",
			Operation:    "send_with_ack",
		})

	logger.WithError(err).Error("Delivery failed")

	output := buf.String()
	if !strings.Contains(output, "error_code=1200") {
		t.Errorf("Expected error_code field: %s", output)
	}
	if !strings.Contains(output, "error_name=AckTimeout") {
		t.Error("Expected error_name field")
	}
	if !strings.Contains(output, "error_category=timeout") {
		t.Error("Expected error_category field")
	}
	if !strings.Contains(output, "[abc123]") {
		t.Error("Expected connection ID from error context")
	}
	if !strings.Contains(output, "client/send_with_ack:") {
		t.Error("Expected component and operation in header")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("Reconnect scheduled",
		Int("attempt", 2),
		Duration("delay", 2*time.Second),
		ErrorField(errors.New("dial refused")),
	)

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Reconnect scheduled", entry["message"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "2s", entry["delay"])
	assert.Equal(t, "dial refused", entry["error"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Error("nothing")
		logger.WithFields(String("a", "b")).Warn("still nothing")
	})
}

func TestConcurrentWrites(t *testing.T) {
	var buf safeBuffer
	logger := New(&buf, NewTextFormatter())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.WithFields(Int("worker", i)).Info("tick")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
}

func TestHTTPMiddleware(t *testing.T) {
	var buf safeBuffer
	logger := New(&buf, NewTextFormatter())

	var seen string
	handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ConnectionIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Connection-ID", "conn-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "conn-7", seen)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/healthz")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
