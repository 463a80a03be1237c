package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNoConnQueued is returned by MockDialer when nothing was queued
var ErrNoConnQueued = errors.New("mock dialer: no connection queued")

const memConnBuffer = 4096

// MemConn is an in-memory Conn. Messages written to one end of a Pipe are
// read from the other. Every write is recorded for assertions.
type MemConn struct {
	name string
	in   chan []byte
	peer *MemConn

	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	closeCode   int
	closeReason string
	written     [][]byte
	writeErr    error
}

// Pipe returns the two ends of an in-memory connection
func Pipe() (client *MemConn, server *MemConn) {
	client = &MemConn{name: "client", in: make(chan []byte, memConnBuffer), closed: make(chan struct{})}
	server = &MemConn{name: "server", in: make(chan []byte, memConnBuffer), closed: make(chan struct{})}
	client.peer = server
	server.peer = client
	return client, server
}

// ReadMessage returns the next message written by the peer
func (c *MemConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-c.peer.closed:
		// Drain anything the peer wrote before closing.
		select {
		case data := <-c.in:
			return data, nil
		default:
		}
		code, reason, _ := c.peer.CloseStatus()
		return nil, &CloseError{Code: code, Reason: reason}
	}
}

// WriteMessage delivers data to the peer
func (c *MemConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	err := c.writeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClosed
	case <-c.peer.closed:
		return ErrClosed
	default:
	}

	msg := append([]byte(nil), data...)
	c.mu.Lock()
	c.written = append(c.written, msg)
	c.mu.Unlock()

	select {
	case c.peer.in <- msg:
		return nil
	case <-c.peer.closed:
		return ErrClosed
	}
}

// Close marks this end closed; the peer's next read returns a CloseError
func (c *MemConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

// RemoteAddr names the peer end
func (c *MemConn) RemoteAddr() string {
	return "mem:" + c.peer.name
}

// CloseStatus reports the code and reason passed to Close
func (c *MemConn) CloseStatus() (code int, reason string, closed bool) {
	select {
	case <-c.closed:
	default:
		return 0, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason, true
}

// Done is closed once this end is closed
func (c *MemConn) Done() <-chan struct{} {
	return c.closed
}

// Written returns a copy of every message written on this end
func (c *MemConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// SetWriteError makes every following write fail with err. nil restores writes.
func (c *MemConn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

type dialResult struct {
	conn Conn
	err  error
}

// MockDialer hands out queued connections and errors in order
type MockDialer struct {
	mu      sync.Mutex
	results []dialResult
	urls    []string
	dialed  chan string
}

// NewMockDialer creates a dialer that fails until something is queued
func NewMockDialer() *MockDialer {
	return &MockDialer{dialed: make(chan string, 256)}
}

// QueueConn makes a later Dial return conn
func (d *MockDialer) QueueConn(conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{conn: conn})
}

// QueueError makes a later Dial fail with err
func (d *MockDialer) QueueError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{err: err})
}

// QueuePipe queues the client end of a new Pipe and returns the server end
func (d *MockDialer) QueuePipe() *MemConn {
	client, server := Pipe()
	d.QueueConn(client)
	return server
}

// Dial pops the next queued result
func (d *MockDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.urls = append(d.urls, url)
	var res dialResult
	if len(d.results) > 0 {
		res = d.results[0]
		d.results = d.results[1:]
	} else {
		res = dialResult{err: ErrNoConnQueued}
	}
	d.mu.Unlock()

	select {
	case d.dialed <- url:
	default:
	}
	return res.conn, res.err
}

// Dialed receives the URL of every Dial call
func (d *MockDialer) Dialed() <-chan string {
	return d.dialed
}

// URLs returns every URL dialed so far
func (d *MockDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}
