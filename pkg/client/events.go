package client

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

// StateChangeEvent is published on every state transition
type StateChangeEvent struct {
	From State
	To   State
	Err  error
}

// ConnectedEvent is published once the socket is open
type ConnectedEvent struct {
	At       time.Time
	Endpoint string
}

// DisconnectedEvent is published whenever a socket or dial attempt ends
type DisconnectedEvent struct {
	Code   int
	Reason string
	Err    error
	// WillRetry is set when a reconnection is scheduled after RetryIn
	WillRetry bool
	RetryIn   time.Duration
	Attempt   int
}

// ReconnectingEvent is published when a scheduled retry fires
type ReconnectingEvent struct {
	Attempt int
	Delay   time.Duration
}

// ReconnectFailedEvent is published when attempts are exhausted
type ReconnectFailedEvent struct {
	Attempts int
	Err      error
}

// QueuedEvent is published when a frame enters the outbound buffer
type QueuedEvent struct {
	Frame     protocol.Frame
	QueueSize int
}

// QueueFullEvent is published when a frame is evicted to make room
type QueueFullEvent struct {
	Evicted  protocol.Frame
	Capacity int
}

// ExpiredEvent is published when a frame is dropped unsent
type ExpiredEvent struct {
	Frame protocol.Frame
}

// ParseErrorEvent is published for inbound data that could not be decoded
type ParseErrorEvent struct {
	Raw   []byte
	Event string
	Err   error
}

// AckTimeoutEvent is published when an acknowledgment does not arrive in time
type AckTimeoutEvent struct {
	MessageID string
	Event     string
	Timeout   time.Duration
}

// HeartbeatTimeoutEvent is published before the socket is force-closed
type HeartbeatTimeoutEvent struct {
	LastPong time.Time
	Timeout  time.Duration
}

// HeartbeatWarningEvent is published when pongs are overdue
type HeartbeatWarningEvent struct {
	SinceLastPong time.Duration
	Interval      time.Duration
}

// SyncRequiredEvent tells the application to fetch what it missed while
// the connection was down
type SyncRequiredEvent struct {
	ConnectedAt        time.Time
	LastDisconnectedAt time.Time
}

// Subscription is returned by Subscribe; Unsubscribe stops delivery
type Subscription struct {
	active *atomic.Bool
	remove func()
	once   sync.Once
}

// Unsubscribe removes the callback. Callbacks already dispatched for
// earlier events are skipped too. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.active.Store(false)
		s.remove()
	})
}

type handler[T any] struct {
	id     uint64
	fn     func(T)
	active *atomic.Bool
}

// Topic is one typed event stream. Callbacks run on the client's dispatcher
// goroutine in registration order, so they may call back into the client.
type Topic[T any] struct {
	mu       sync.Mutex
	handlers []handler[T]
	nextID   uint64
	dispatch *serialQueue
}

// Subscribe registers fn for every later event
func (t *Topic[T]) Subscribe(fn func(T)) *Subscription {
	active := &atomic.Bool{}
	active.Store(true)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.handlers = append(t.handlers, handler[T]{id: id, fn: fn, active: active})
	t.mu.Unlock()

	return &Subscription{active: active, remove: func() { t.remove(id) }}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.handlers {
		if h.id == id {
			t.handlers = append(t.handlers[:i:i], t.handlers[i+1:]...)
			return
		}
	}
}

func (t *Topic[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

func (t *Topic[T]) emit(v T) {
	t.mu.Lock()
	if len(t.handlers) == 0 {
		t.mu.Unlock()
		return
	}
	handlers := append([]handler[T](nil), t.handlers...)
	t.mu.Unlock()

	t.dispatch.post(func() {
		for _, h := range handlers {
			if h.active.Load() {
				h.fn(v)
			}
		}
	})
}

// Events groups every topic a Client publishes
type Events struct {
	StateChange       Topic[StateChangeEvent]
	Connected         Topic[ConnectedEvent]
	Disconnected      Topic[DisconnectedEvent]
	Reconnecting      Topic[ReconnectingEvent]
	ReconnectFailed   Topic[ReconnectFailedEvent]
	Message           Topic[protocol.Frame]
	MessageQueued     Topic[QueuedEvent]
	MessageQueueFull  Topic[QueueFullEvent]
	MessageExpired    Topic[ExpiredEvent]
	MessageParseError Topic[ParseErrorEvent]
	AckTimeout        Topic[AckTimeoutEvent]
	HeartbeatTimeout  Topic[HeartbeatTimeoutEvent]
	HeartbeatWarning  Topic[HeartbeatWarningEvent]
	SyncRequired      Topic[SyncRequiredEvent]

	dispatch *serialQueue
	mu       sync.Mutex
	byEvent  map[string]*Topic[protocol.Frame]
}

func newEvents(dispatch *serialQueue) *Events {
	e := &Events{dispatch: dispatch, byEvent: make(map[string]*Topic[protocol.Frame])}
	e.StateChange.dispatch = dispatch
	e.Connected.dispatch = dispatch
	e.Disconnected.dispatch = dispatch
	e.Reconnecting.dispatch = dispatch
	e.ReconnectFailed.dispatch = dispatch
	e.Message.dispatch = dispatch
	e.MessageQueued.dispatch = dispatch
	e.MessageQueueFull.dispatch = dispatch
	e.MessageExpired.dispatch = dispatch
	e.MessageParseError.dispatch = dispatch
	e.AckTimeout.dispatch = dispatch
	e.HeartbeatTimeout.dispatch = dispatch
	e.HeartbeatWarning.dispatch = dispatch
	e.SyncRequired.dispatch = dispatch
	return e
}

// On returns the topic for frames whose event name is event
func (e *Events) On(event string) *Topic[protocol.Frame] {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.byEvent[event]
	if !ok {
		t = &Topic[protocol.Frame]{dispatch: e.dispatch}
		e.byEvent[event] = t
	}
	return t
}

// emitFrame publishes an inbound application frame to Message and to the
// topic named after its event
func (e *Events) emitFrame(f protocol.Frame) {
	e.Message.emit(f)

	e.mu.Lock()
	t := e.byEvent[f.Event]
	e.mu.Unlock()
	if t != nil {
		t.emit(f)
	}
}
