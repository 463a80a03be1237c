package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

const transportName = "websocket"

// Client keeps one websocket to the backend alive and delivers frames over
// it. All mutable state lives on a single loop goroutine; public methods
// hand work to the loop and wait for it.
type Client struct {
	id     string
	config Config

	dialer  transport.Dialer
	clock   clockwork.Clock
	logger  logging.Logger
	metrics observability.ClientMetrics
	tracer  trace.Tracer
	tokens  auth.TokenProvider
	random  func() float64
	newID   func() string

	loop     *serialQueue
	dispatch *serialQueue
	events   *Events

	closeOnce sync.Once
	stateVal  atomic.Int32

	// Owned by the loop
	closing            bool
	state              State
	conn               transport.Conn
	connGen            uint64
	connCancel         context.CancelFunc
	dialCancel         context.CancelFunc
	buffer             *outboundBuffer
	acks               *ackTracker
	heartbeat          *heartbeatMonitor
	scheduler          *reconnectScheduler
	lastConnectedAt    time.Time
	lastDisconnectedAt time.Time
	lastTimestamp      int64
}

// New validates config and starts the client's goroutines. The client stays
// disconnected until Connect is called.
func New(config Config, options ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		id:     uuid.NewString(),
		config: config,
		state:  StateDisconnected,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.metrics == nil {
		c.metrics = observability.NoopMetrics{}
	}
	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer("")
	}
	if c.tokens == nil {
		c.tokens = auth.StaticToken(config.Token)
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.dialer == nil {
		c.dialer = transport.NewWebSocketDialer(config.Connection)
	}
	c.dialer = observability.InstrumentDialer(c.dialer, c.tracer, c.metrics)

	c.logger = c.logger.
		WithContext(logging.ContextWithConnectionID(context.Background(), c.id)).
		WithFields(logging.Component("client"))

	c.buffer = newOutboundBuffer(config.Queue.Capacity)
	c.acks = newAckTracker(c.clock, c.tracer)
	c.heartbeat = newHeartbeatMonitor(config.Heartbeat, c.clock, c)
	c.scheduler = newReconnectScheduler(config.Reconnect, c.random)

	c.loop = newSerialQueue("loop", c.logger)
	c.dispatch = newSerialQueue("dispatch", c.logger)
	c.events = newEvents(c.dispatch)

	c.stateVal.Store(int32(StateDisconnected))
	c.metrics.SetConnectionState(StateDisconnected.String())

	return c, nil
}

// ID identifies this client in logs
func (c *Client) ID() string {
	return c.id
}

// Events returns the client's event topics
func (c *Client) Events() *Events {
	return c.events
}

// On subscribes fn to inbound frames named event
func (c *Client) On(event string, fn func(protocol.Frame)) *Subscription {
	return c.events.On(event).Subscribe(fn)
}

// Handle subscribes fn to inbound frames named event, decoding each payload
// into T. Payloads that do not decode are reported on MessageParseError.
func Handle[T any](c *Client, event string, fn func(T, protocol.Frame)) *Subscription {
	return c.On(event, func(f protocol.Frame) {
		var v T
		if err := f.DecodePayload(&v); err != nil {
			c.events.MessageParseError.emit(ParseErrorEvent{Raw: f.Payload, Event: f.Event, Err: err})
			return
		}
		fn(v, f)
	})
}

// do runs fn on the loop and waits for it
func (c *Client) do(fn func()) error {
	done := make(chan struct{})
	if !c.loop.post(func() {
		defer close(done)
		fn()
	}) {
		return rterrors.ErrClientClosed
	}
	<-done
	return nil
}

// post runs fn on the loop without waiting
func (c *Client) post(fn func()) bool {
	return c.loop.post(fn)
}

// State returns the current state without waiting for the loop
func (c *Client) State() State {
	return State(c.stateVal.Load())
}

// Info returns a snapshot of the connection
func (c *Client) Info() ConnectionInfo {
	info := ConnectionInfo{State: c.State()}
	_ = c.do(func() {
		info = ConnectionInfo{
			State:              c.state,
			ReconnectAttempts:  c.scheduler.attempts,
			LastConnectedAt:    c.lastConnectedAt,
			LastDisconnectedAt: c.lastDisconnectedAt,
			HeartbeatStatus:    c.heartbeat.status,
			LastHeartbeatRTT:   c.heartbeat.lastRTT,
			QueueSize:          c.buffer.len(),
			PendingAcks:        c.acks.len(),
		}
	})
	return info
}

// WaitForState blocks until the client reaches target or ctx ends
func (c *Client) WaitForState(ctx context.Context, target State) error {
	reached := make(chan struct{})
	var once sync.Once
	sub := c.events.StateChange.Subscribe(func(e StateChangeEvent) {
		if e.To == target {
			once.Do(func() { close(reached) })
		}
	})
	defer sub.Unsubscribe()

	if c.State() == target {
		return nil
	}

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect opens the connection in the background. It is a no-op while
// connecting or connected; otherwise it resets the attempt counter and
// cancels any scheduled retry. Outcomes are reported as events.
func (c *Client) Connect() error {
	var err error
	if e := c.do(func() {
		if c.closing {
			err = rterrors.ErrClientClosed
			return
		}
		if c.state == StateConnecting || c.state == StateConnected {
			return
		}
		c.scheduler.cancel()
		c.scheduler.reset()
		c.startConnect()
	}); e != nil {
		return e
	}
	return err
}

// Disconnect closes the socket with code 1000 and prevents automatic
// reconnection. Buffered frames and pending acknowledgments are kept for a
// later Connect.
func (c *Client) Disconnect() error {
	var err error
	if e := c.do(func() {
		if c.closing {
			err = rterrors.ErrClientClosed
			return
		}
		c.disconnect()
	}); e != nil {
		return e
	}
	return err
}

func (c *Client) disconnect() {
	c.scheduler.exhaust()
	c.teardown(transport.CloseNormal, "client disconnect")
	if c.state == StateDisconnected {
		return
	}
	c.lastDisconnectedAt = c.clock.Now()
	c.setState(StateDisconnected, nil)
	c.events.Disconnected.emit(DisconnectedEvent{Code: transport.CloseNormal, Reason: "client disconnect"})
	c.logger.Info("disconnected by client")
}

// Close disconnects, fails every pending delivery with ErrClientClosed and
// stops the client's goroutines. Callbacks already queued still run. Every
// later call on the client returns ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.do(func() {
			c.disconnect()
			c.closing = true

			rejected := c.acks.rejectAll(rterrors.ErrClientClosed)
			for _, e := range c.buffer.drain() {
				e.delivery.complete("", rterrors.ErrClientClosed)
			}
			c.metrics.SetQueueSize(0)
			c.metrics.SetPendingAcks(0)
			c.logger.Debug("client closed", logging.Int("rejected_acks", rejected))
		})
		c.loop.stop()
		<-c.loop.done
		c.dispatch.stop()
	})
	return nil
}

// Send delivers event with payload, writing it now when connected and
// buffering it otherwise. The error reports invalid input or a closed
// client only; delivery problems surface through the returned Delivery.
func (c *Client) Send(event string, payload interface{}, opts ...SendOption) (*Delivery, error) {
	if protocol.IsReserved(event) {
		return nil, rterrors.InvalidArgument("event", "reserved for the transport")
	}

	o := sendOptions{ackTimeout: c.config.Ack.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.priority.Valid() {
		return nil, rterrors.InvalidArgument("priority", "must be one of high, normal, low")
	}
	if o.ackTimeout <= 0 {
		return nil, rterrors.InvalidArgument("ack_timeout", "must be positive")
	}

	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		return nil, err
	}

	var d *Delivery
	if e := c.do(func() {
		if c.closing {
			err = rterrors.ErrClientClosed
			return
		}
		d = c.submit(frame, o)
	}); e != nil {
		return nil, e
	}
	return d, err
}

// SendWithAck is Send with WithRequireAck
func (c *Client) SendWithAck(event string, payload interface{}, opts ...SendOption) (*Delivery, error) {
	return c.Send(event, payload, append(opts, WithRequireAck())...)
}

// Ack confirms an inbound frame with a low priority message:ack frame
func (c *Client) Ack(messageID string, status protocol.AckStatus) (*Delivery, error) {
	if messageID == "" {
		return nil, rterrors.InvalidArgument("messageID", "must not be empty")
	}
	if !status.Valid() {
		return nil, rterrors.InvalidArgument("status", "must be delivered or read")
	}

	var (
		d   *Delivery
		err error
	)
	if e := c.do(func() {
		if c.closing {
			err = rterrors.ErrClientClosed
			return
		}
		d, err = c.ack(messageID, status)
	}); e != nil {
		return nil, e
	}
	return d, err
}

func (c *Client) ack(messageID string, status protocol.AckStatus) (*Delivery, error) {
	frame, err := protocol.NewFrame(protocol.EventAck, protocol.AckPayload{
		MessageID: messageID,
		Status:    status,
		Timestamp: protocol.Millis(c.clock.Now()),
	})
	if err != nil {
		return nil, err
	}
	return c.submit(frame, sendOptions{priority: protocol.PriorityLow}), nil
}

// stamp returns a millisecond timestamp that never goes backwards
func (c *Client) stamp(now time.Time) int64 {
	ms := protocol.Millis(now)
	if ms < c.lastTimestamp {
		ms = c.lastTimestamp
	}
	c.lastTimestamp = ms
	return ms
}

// submit stamps frame, registers its acknowledgment and routes it to the
// socket or the buffer
func (c *Client) submit(frame *protocol.Frame, o sendOptions) *Delivery {
	now := c.clock.Now()
	frame.Timestamp = c.stamp(now)
	frame.Priority = o.priority.OrDefault()
	if o.requireAck || frame.Event == protocol.EventAck {
		frame.MessageID = c.newID()
	}

	switch {
	case !o.expiry.IsZero():
		frame.ExpiryTime = protocol.Millis(o.expiry)
	case o.ttl > 0:
		frame.ExpiryTime = protocol.Millis(now.Add(o.ttl))
	case c.config.Queue.DefaultExpiry > 0:
		frame.ExpiryTime = protocol.Millis(now.Add(c.config.Queue.DefaultExpiry))
	}

	d := newDelivery(frame.Event, "")
	if o.requireAck {
		d.messageID = frame.MessageID
		c.acks.register(frame.MessageID, frame.Event, d, o.ackTimeout, func(p *pendingAck) {
			c.post(func() { c.handleAckTimeout(p) })
		})
		c.metrics.SetPendingAcks(c.acks.len())
	}

	c.route(frame, d)
	return d
}

func (c *Client) route(frame *protocol.Frame, d *Delivery) {
	if c.state == StateConnected && c.conn != nil {
		if err := c.transmit(frame, d); err != nil {
			c.enqueue(frame, d)
			c.lostConnection(err)
		}
		return
	}
	c.enqueue(frame, d)
}

// transmit writes one frame. It returns an error only when the socket write
// fails; frames that expired or cannot be encoded settle their delivery.
func (c *Client) transmit(frame *protocol.Frame, d *Delivery) error {
	if frame.Expired(c.clock.Now()) {
		c.expire(frame, d)
		return nil
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		c.fail(frame, d, err)
		return nil
	}

	span := observability.StartFrameSpan(c.tracer, observability.SpanSend, frame.Event, frame.MessageID)
	if err := c.conn.WriteMessage(data); err != nil {
		err = rterrors.WriteFailed(transportName, err)
		observability.EndSpan(span, err)
		return err
	}
	observability.EndSpan(span, nil)

	c.metrics.IncFramesSent(frameKind(frame.Event))
	if !frame.RequiresAck() {
		d.complete("", nil)
	}
	return nil
}

// sendControl writes a ping or pong immediately. Control frames are never
// buffered; a missed ping is covered by the next tick.
func (c *Client) sendControl(event string, payload interface{}) {
	if c.state != StateConnected || c.conn == nil {
		return
	}
	frame, err := protocol.NewFrame(event, payload)
	if err != nil {
		c.logger.Error("failed to build control frame", logging.Event(event), logging.ErrorField(err))
		return
	}
	frame.Timestamp = c.stamp(c.clock.Now())
	frame.Priority = protocol.PriorityLow
	if event == protocol.EventPing {
		frame.MessageID = c.newID()
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		c.logger.Error("failed to encode control frame", logging.Event(event), logging.ErrorField(err))
		return
	}
	if err := c.conn.WriteMessage(data); err != nil {
		c.lostConnection(rterrors.WriteFailed(transportName, err))
		return
	}
	c.metrics.IncFramesSent(event)
}

func (c *Client) enqueue(frame *protocol.Frame, d *Delivery) {
	if evicted := c.buffer.push(frame, d); evicted != nil {
		c.metrics.IncEvicted()
		c.logger.Warn("outbound buffer full, evicting frame",
			logging.Event(evicted.frame.Event),
			logging.String("priority", evicted.frame.Priority.String()))
		c.events.MessageQueueFull.emit(QueueFullEvent{Evicted: *evicted.frame, Capacity: c.config.Queue.Capacity})
		c.fail(evicted.frame, evicted.delivery,
			rterrors.QueueFull(evicted.frame.MessageID, evicted.frame.Event, c.config.Queue.Capacity))
	}

	c.metrics.IncQueued()
	c.metrics.SetQueueSize(c.buffer.len())
	c.events.MessageQueued.emit(QueuedEvent{Frame: *frame, QueueSize: c.buffer.len()})
}

func (c *Client) expire(frame *protocol.Frame, d *Delivery) {
	c.metrics.IncExpired()
	c.logger.Debug("dropping expired frame", logging.Event(frame.Event), logging.MessageID(frame.MessageID))
	c.events.MessageExpired.emit(ExpiredEvent{Frame: *frame})
	c.fail(frame, d, rterrors.MessageExpired(frame.MessageID, frame.Event, frame.Expiry()))
}

// fail settles a delivery that will never be written
func (c *Client) fail(frame *protocol.Frame, d *Delivery, err error) {
	if frame.RequiresAck() {
		c.acks.reject(frame.MessageID, err)
		c.metrics.SetPendingAcks(c.acks.len())
	}
	d.complete("", err)
}

// flush drains the buffer in priority order while the socket stays up
func (c *Client) flush() {
	for _, e := range c.buffer.purgeExpired(c.clock.Now()) {
		c.expire(e.frame, e.delivery)
	}

	for c.state == StateConnected {
		e := c.buffer.peek()
		if e == nil {
			break
		}
		if err := c.transmit(e.frame, e.delivery); err != nil {
			c.lostConnection(err)
			break
		}
		c.buffer.pop()
	}
	c.metrics.SetQueueSize(c.buffer.len())
}

func (c *Client) handleAckTimeout(p *pendingAck) {
	if !c.acks.expire(p) {
		return
	}
	if c.buffer.remove(p.messageID) != nil {
		c.metrics.SetQueueSize(c.buffer.len())
	}
	c.metrics.IncAckTimeouts()
	c.metrics.SetPendingAcks(c.acks.len())
	c.logger.Warn("acknowledgment timed out",
		logging.Event(p.event),
		logging.MessageID(p.messageID),
		logging.Duration("timeout", p.timeout))
	c.events.AckTimeout.emit(AckTimeoutEvent{MessageID: p.messageID, Event: p.event, Timeout: p.timeout})
}

func (c *Client) setState(s State, err error) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.stateVal.Store(int32(s))
	c.metrics.SetConnectionState(s.String())
	c.logger.Debug("state change",
		logging.String("from", from.String()),
		logging.String("to", s.String()))
	c.events.StateChange.emit(StateChangeEvent{From: from, To: s, Err: err})
}

func (c *Client) startConnect() {
	c.setState(StateConnecting, nil)

	c.connGen++
	gen := c.connGen
	ctx, cancel := context.WithCancel(context.Background())
	c.dialCancel = cancel

	go c.dial(ctx, gen)
}

func (c *Client) dial(ctx context.Context, gen uint64) {
	var (
		conn transport.Conn
		url  string
	)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		err = rterrors.InvalidToken(err)
	} else {
		url, err = transport.BuildURL(c.config.Endpoint, token, c.clock.Now())
		if err != nil {
			err = rterrors.ConnectionFailed(transportName, c.config.Endpoint, err)
		} else {
			conn, err = c.dialer.Dial(ctx, url)
		}
	}

	if !c.post(func() { c.handleDialResult(gen, url, conn, err) }) && conn != nil {
		_ = conn.Close(transport.CloseNormal, "client closed")
	}
}

func (c *Client) handleDialResult(gen uint64, url string, conn transport.Conn, err error) {
	if gen != c.connGen || c.closing || c.state != StateConnecting {
		if conn != nil {
			_ = conn.Close(transport.CloseNormal, "stale connection")
		}
		return
	}
	c.dialCancel = nil

	if err != nil {
		c.logger.WithError(err).Warn("connection attempt failed",
			logging.String("endpoint", transport.RedactURL(url)))
		c.handleConnectionLoss(transport.CloseAbnormal, "", err)
		return
	}

	c.open(conn, url)
}

func (c *Client) open(conn transport.Conn, url string) {
	ctx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.connCancel = cancel
	gen := c.connGen
	go c.readPump(ctx, conn, gen)

	now := c.clock.Now()
	previousDisconnect := c.lastDisconnectedAt
	c.lastConnectedAt = now
	c.scheduler.reset()

	c.heartbeat.start()
	c.setState(StateConnected, nil)
	c.logger.Info("connected",
		logging.String("endpoint", transport.RedactURL(url)),
		logging.String("remote_addr", conn.RemoteAddr()))
	c.events.Connected.emit(ConnectedEvent{At: now, Endpoint: transport.RedactURL(url)})

	c.flush()
	if c.state != StateConnected {
		return
	}
	c.events.SyncRequired.emit(SyncRequiredEvent{ConnectedAt: now, LastDisconnectedAt: previousDisconnect})
}

func (c *Client) readPump(ctx context.Context, conn transport.Conn, gen uint64) {
	err := transport.Pump(ctx, conn, func(data []byte) {
		c.post(func() { c.handleInbound(gen, data) })
	})
	if ctx.Err() != nil {
		return
	}
	c.post(func() { c.handleReadError(gen, err) })
}

func (c *Client) handleReadError(gen uint64, err error) {
	if gen != c.connGen || c.conn == nil {
		return
	}
	code := transport.CloseCode(err)
	reason := ""
	var ce *transport.CloseError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}

	c.teardown(transport.CloseGoingAway, "")
	c.logger.Warn("connection lost",
		logging.Int("close_code", code),
		logging.String("reason", reason))
	c.handleConnectionLoss(code, reason,
		rterrors.ConnectionLost(transportName, c.config.Endpoint, code, err))
}

// lostConnection handles a failed write on the live socket
func (c *Client) lostConnection(err error) {
	if c.conn == nil {
		return
	}
	c.teardown(transport.CloseGoingAway, "write failed")
	c.logger.WithError(err).Warn("connection lost on write")
	c.handleConnectionLoss(transport.CloseAbnormal, "write failed", err)
}

// teardown invalidates the current socket generation, closes the socket
// with code, and stops the heartbeat
func (c *Client) teardown(code int, reason string) {
	c.connGen++
	c.heartbeat.stop()
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.conn != nil {
		// Close before cancelling the pump so the peer sees our code.
		_ = c.conn.Close(code, reason)
		c.conn = nil
	}
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
}

// handleConnectionLoss schedules the next attempt or gives up
func (c *Client) handleConnectionLoss(code int, reason string, cause error) {
	c.lastDisconnectedAt = c.clock.Now()

	attempt, delay, ok := c.scheduler.next()
	if !ok {
		exhausted := rterrors.ReconnectExhausted(c.scheduler.attempts, cause)
		c.setState(StateError, exhausted)
		c.events.Disconnected.emit(DisconnectedEvent{Code: code, Reason: reason, Err: cause, Attempt: attempt})
		c.logger.Error("reconnection attempts exhausted", logging.Int("attempts", c.scheduler.attempts))
		c.events.ReconnectFailed.emit(ReconnectFailedEvent{Attempts: c.scheduler.attempts, Err: exhausted})
		return
	}

	c.scheduler.arm(c.clock, delay, func(gen uint64) {
		c.post(func() { c.fireReconnect(gen) })
	})
	c.setState(StateDisconnected, cause)
	c.logger.Info("reconnect scheduled",
		logging.Int("attempt", attempt),
		logging.Duration("delay", delay))
	c.events.Disconnected.emit(DisconnectedEvent{
		Code:      code,
		Reason:    reason,
		Err:       cause,
		WillRetry: true,
		RetryIn:   delay,
		Attempt:   attempt,
	})
}

func (c *Client) fireReconnect(gen uint64) {
	if c.closing || !c.scheduler.fired(gen) {
		return
	}
	c.metrics.IncReconnects()
	c.setState(StateReconnecting, nil)
	c.events.Reconnecting.emit(ReconnectingEvent{Attempt: c.scheduler.attempts, Delay: c.scheduler.delay})
	c.startConnect()
}

func (c *Client) handleInbound(gen uint64, data []byte) {
	if gen != c.connGen || c.conn == nil {
		return
	}

	frame, err := protocol.Decode(data)
	if err != nil {
		c.metrics.IncParseErrors()
		c.logger.WithError(err).Warn("dropping malformed frame")
		c.events.MessageParseError.emit(ParseErrorEvent{Raw: data, Err: err})
		return
	}
	c.metrics.IncFramesReceived(frameKind(frame.Event))

	switch frame.Event {
	case protocol.EventPong:
		var p protocol.PongPayload
		_ = frame.DecodePayload(&p)
		if rtt := c.heartbeat.pong(p); rtt > 0 {
			c.metrics.ObserveHeartbeatRTT(rtt)
		}

	case protocol.EventPing:
		var p protocol.PingPayload
		_ = frame.DecodePayload(&p)
		c.sendControl(protocol.EventPong, p)

	case protocol.EventAck:
		var p protocol.AckPayload
		if err := frame.DecodePayload(&p); err != nil || p.MessageID == "" {
			if err == nil {
				err = rterrors.InvalidFrame("payload.messageId", "must not be empty")
			}
			c.events.MessageParseError.emit(ParseErrorEvent{Raw: data, Event: frame.Event, Err: err})
			return
		}
		if pending, ok := c.acks.resolve(p.MessageID, p.Status); ok {
			c.metrics.ObserveAckLatency(c.clock.Since(pending.sentAt))
			c.metrics.SetPendingAcks(c.acks.len())
		}

	default:
		c.events.emitFrame(*frame)
		if c.config.Ack.AutoAck && frame.MessageID != "" {
			if _, err := c.ack(frame.MessageID, protocol.AckDelivered); err != nil {
				c.logger.WithError(err).Warn("auto-ack failed", logging.MessageID(frame.MessageID))
			}
		}
	}
}

// heartbeatHooks

func (c *Client) schedule(d time.Duration, fn func()) clockwork.Timer {
	return c.clock.AfterFunc(d, func() { c.post(fn) })
}

func (c *Client) sendPing(p protocol.PingPayload) {
	c.sendControl(protocol.EventPing, p)
}

func (c *Client) heartbeatWarning(since, interval time.Duration) {
	c.logger.Warn("heartbeat overdue", logging.Duration("since_last_pong", since))
	c.events.HeartbeatWarning.emit(HeartbeatWarningEvent{SinceLastPong: since, Interval: interval})
}

func (c *Client) heartbeatTimeout(lastPong time.Time, timeout time.Duration) {
	c.metrics.IncHeartbeatTimeouts()
	c.logger.Error("heartbeat timeout, closing connection",
		logging.Time("last_pong", lastPong),
		logging.Duration("timeout", timeout))
	c.events.HeartbeatTimeout.emit(HeartbeatTimeoutEvent{LastPong: lastPong, Timeout: timeout})

	if c.conn == nil {
		return
	}
	c.teardown(transport.CloseHeartbeatTimeout, "heartbeat timeout")
	c.handleConnectionLoss(transport.CloseHeartbeatTimeout, "heartbeat timeout",
		rterrors.HeartbeatTimeout(timeout, lastPong))
}

func frameKind(event string) string {
	switch event {
	case protocol.EventPing, protocol.EventPong:
		return event
	case protocol.EventAck:
		return "ack"
	default:
		return "app"
	}
}
