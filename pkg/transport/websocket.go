package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
)

const transportName = "websocket"

// WebSocketDialer dials gorilla/websocket connections
type WebSocketDialer struct {
	config Config
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer from config
func NewWebSocketDialer(config Config) *WebSocketDialer {
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.DialTimeout,
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.EnableCompression,
		},
	}
}

// Dial opens a websocket connection to url
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DialTimeout)
		defer cancel()
	}

	conn, resp, err := d.dialer.DialContext(ctx, url, d.config.Header)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, rterrors.ConnectionTimeout(transportName, url, d.config.DialTimeout)
		}
		connErr := rterrors.ConnectionFailed(transportName, url, err)
		if resp != nil {
			if resp.Body != nil {
				resp.Body.Close()
			}
			connErr = connErr.WithDetail(fmt.Sprintf("handshake status %d", resp.StatusCode))
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, rterrors.Unauthorized(fmt.Sprintf("handshake rejected with status %d", resp.StatusCode))
			}
		}
		return nil, connErr
	}

	return NewWebSocketConn(conn, d.config), nil
}

// WebSocketConn adapts a gorilla connection to Conn. Used by both the client
// dialer and the development server.
type WebSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps conn, applying the read limit from config
func NewWebSocketConn(conn *websocket.Conn, config Config) *WebSocketConn {
	if config.ReadLimit > 0 {
		conn.SetReadLimit(config.ReadLimit)
	}
	return &WebSocketConn{
		conn:         conn,
		writeTimeout: config.WriteTimeout,
		closeTimeout: config.CloseTimeout,
	}
}

// ReadMessage returns the next data message. Peer close frames surface as
// *CloseError.
func (c *WebSocketConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteMessage writes data as one text message
func (c *WebSocketConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the underlying connection
func (c *WebSocketConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		timeout := c.closeTimeout
		if timeout <= 0 {
			timeout = time.Second
		}

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		// The peer may already be gone; the close frame is best effort.
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
		c.writeMu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
