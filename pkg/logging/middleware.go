package logging

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPMiddleware logs each request handled by the development server and
// tags its context with a connection ID. Websocket upgrades keep working
// because the wrapped writer still exposes http.Hijacker.
func HTTPMiddleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Connection-ID")
			if id == "" {
				id = uuid.NewString()
			}
			r = r.WithContext(ContextWithConnectionID(r.Context(), id))

			reqLogger := logger.WithFields(
				String(connectionKey, id),
				String("method", r.Method),
				String("path", r.URL.Path),
				String("remote_addr", r.RemoteAddr),
			)
			reqLogger.Debug("HTTP request started")

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			start := time.Now()

			next.ServeHTTP(rw, r)

			fields := []Field{
				Int("status", rw.statusCode),
				Int("bytes", rw.bytesWritten),
				Duration("duration", time.Since(start)),
			}
			if rw.hijacked {
				fields = append(fields, Bool("upgraded", true))
			}
			reqLogger.WithFields(fields...).Info("HTTP request completed")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	hijacked     bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	conn, brw, err := hj.Hijack()
	if err == nil {
		rw.hijacked = true
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, brw, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
