package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
)

const waitTimeout = 2 * time.Second

type chatMessage struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

type harness struct {
	t      *testing.T
	clock  clockwork.FakeClock
	dialer *transport.MockDialer
	client *Client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "ws://chat.test/ws"
	cfg.Token = "tok-123"
	cfg.Reconnect.InitialDelay = 100 * time.Millisecond
	cfg.Reconnect.MaxDelay = time.Second
	// Long enough that no heartbeat fires unless a test asks for it.
	cfg.Heartbeat.Interval = time.Hour
	cfg.Heartbeat.Timeout = 2 * time.Hour
	return cfg
}

func newHarness(t *testing.T, mutate func(*Config), opts ...Option) *harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		t:      t,
		clock:  clockwork.NewFakeClock(),
		dialer: transport.NewMockDialer(),
	}

	var seq atomic.Int64
	base := []Option{
		WithClock(h.clock),
		WithDialer(h.dialer),
		WithRandom(fixedRand(0.5)),
		WithIDGenerator(func() string { return fmt.Sprintf("m-%d", seq.Add(1)) }),
	}
	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	h.client = c
	return h
}

// collect subscribes a buffered channel to topic
func collect[T any](topic *Topic[T]) <-chan T {
	ch := make(chan T, 256)
	topic.Subscribe(func(v T) { ch <- v })
	return ch
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

func assertNone[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %T: %+v", v, v)
	case <-time.After(50 * time.Millisecond):
	}
}

// readFrame reads the next frame the client wrote to server
func readFrame(t *testing.T, server *transport.MemConn) protocol.Frame {
	t.Helper()
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := server.ReadMessage()
		ch <- result{data, err}
	}()

	select {
	case r := <-ch:
		require.NoError(t, r.err)
		f, err := protocol.Decode(r.data)
		require.NoError(t, err)
		return *f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a frame")
		return protocol.Frame{}
	}
}

// readEvent reads frames until one named event arrives
func readEvent(t *testing.T, server *transport.MemConn, event string) protocol.Frame {
	t.Helper()
	for {
		f := readFrame(t, server)
		if f.Event == event {
			return f
		}
	}
}

func writeFrame(t *testing.T, server *transport.MemConn, f protocol.Frame) {
	t.Helper()
	data, err := protocol.Encode(&f)
	require.NoError(t, err)
	require.NoError(t, server.WriteMessage(data))
}

// connect queues a pipe, connects and waits for the connected event
func (h *harness) connect() *transport.MemConn {
	h.t.Helper()
	connected := collect(&h.client.Events().Connected)
	server := h.dialer.QueuePipe()
	require.NoError(h.t, h.client.Connect())
	recv(h.t, connected)
	return server
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidConfig))
}

func TestConnect(t *testing.T) {
	h := newHarness(t, nil)
	states := collect(&h.client.Events().StateChange)
	syncs := collect(&h.client.Events().SyncRequired)

	assert.Equal(t, StateDisconnected, h.client.State())
	h.connect()

	assert.Equal(t, StateConnecting, recv(t, states).To)
	assert.Equal(t, StateConnected, recv(t, states).To)
	sync := recv(t, syncs)
	assert.Equal(t, h.clock.Now(), sync.ConnectedAt)
	assert.True(t, sync.LastDisconnectedAt.IsZero())

	urls := h.dialer.URLs()
	require.Len(t, urls, 1)
	u, err := url.Parse(urls[0])
	require.NoError(t, err)
	assert.Equal(t, "tok-123", u.Query().Get(transport.TokenParam))
	assert.Equal(t, fmt.Sprint(protocol.Millis(h.clock.Now())), u.Query().Get(transport.TimestampParam))

	info := h.client.Info()
	assert.Equal(t, StateConnected, info.State)
	assert.Equal(t, h.clock.Now(), info.LastConnectedAt)
	assert.Equal(t, HeartbeatHealthy, info.HeartbeatStatus)

	// Connect while connected does nothing.
	require.NoError(t, h.client.Connect())
	assertNone(t, states)
	assert.Len(t, h.dialer.URLs(), 1)
}

func TestConnectUsesTokenProvider(t *testing.T) {
	h := newHarness(t, nil, WithTokenProvider(auth.TokenFunc(func(context.Context) (string, error) {
		return "fresh", nil
	})))
	h.connect()

	u, err := url.Parse(h.dialer.URLs()[0])
	require.NoError(t, err)
	assert.Equal(t, "fresh", u.Query().Get(transport.TokenParam))
}

func TestReconnectBackoffUntilExhausted(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Reconnect.MaxAttempts = 3 })
	disconnects := collect(&h.client.Events().Disconnected)
	reconnecting := collect(&h.client.Events().Reconnecting)
	failed := collect(&h.client.Events().ReconnectFailed)

	// No connection is queued, so every dial fails.
	require.NoError(t, h.client.Connect())

	for i, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond} {
		d := recv(t, disconnects)
		assert.True(t, d.WillRetry)
		assert.Equal(t, want, d.RetryIn)
		assert.Equal(t, i+1, d.Attempt)
		assert.Equal(t, StateDisconnected, h.client.State())

		h.clock.Advance(want)
		r := recv(t, reconnecting)
		assert.Equal(t, i+1, r.Attempt)
		assert.Equal(t, want, r.Delay)
	}

	d := recv(t, disconnects)
	assert.False(t, d.WillRetry)
	f := recv(t, failed)
	assert.Equal(t, 3, f.Attempts)
	assert.True(t, rterrors.IsCode(f.Err, rterrors.CodeReconnectExhausted))
	assert.Equal(t, StateError, h.client.State())
	assert.Len(t, h.dialer.URLs(), 4)

	// No further retries are scheduled.
	h.clock.Advance(time.Hour)
	assertNone(t, reconnecting)

	// Connect starts over with a fresh attempt counter.
	connected := collect(&h.client.Events().Connected)
	h.dialer.QueuePipe()
	require.NoError(t, h.client.Connect())
	recv(t, connected)
	assert.Zero(t, h.client.Info().ReconnectAttempts)
}

func TestReconnectBackoffWithJitter(t *testing.T) {
	tests := []struct {
		name string
		rand float64
		want []time.Duration
	}{
		// +7.5% jitter; the capped third delay may overshoot MaxDelay.
		{"above", 0.875, []time.Duration{107500 * time.Microsecond, 215 * time.Millisecond, 430 * time.Millisecond}},
		// -7.5% jitter; the first delay is held at InitialDelay.
		{"below", 0.125, []time.Duration{100 * time.Millisecond, 185 * time.Millisecond, 370 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) {
				c.Reconnect.MaxAttempts = 3
				c.Reconnect.MaxDelay = 400 * time.Millisecond
				c.Reconnect.Jitter = 0.1
			}, WithRandom(fixedRand(tt.rand)))
			disconnects := collect(&h.client.Events().Disconnected)
			reconnecting := collect(&h.client.Events().Reconnecting)
			failed := collect(&h.client.Events().ReconnectFailed)

			require.NoError(t, h.client.Connect())
			bases := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
			for i, want := range tt.want {
				d := recv(t, disconnects)
				require.True(t, d.WillRetry)
				assert.InDelta(t, float64(want), float64(d.RetryIn), float64(time.Microsecond))
				assert.GreaterOrEqual(t, d.RetryIn, 100*time.Millisecond)
				assert.InDelta(t, float64(bases[i]), float64(d.RetryIn), float64(bases[i])/10)

				h.clock.Advance(d.RetryIn)
				assert.Equal(t, d.RetryIn, recv(t, reconnecting).Delay)
			}

			assert.False(t, recv(t, disconnects).WillRetry)
			assert.Equal(t, 3, recv(t, failed).Attempts)
			assert.Equal(t, StateError, h.client.State())
		})
	}
}

func TestReconnectAfterServerClose(t *testing.T) {
	h := newHarness(t, nil)
	disconnects := collect(&h.client.Events().Disconnected)
	syncs := collect(&h.client.Events().SyncRequired)
	server := h.connect()
	recv(t, syncs)

	connected := collect(&h.client.Events().Connected)
	next := h.dialer.QueuePipe()
	require.NoError(t, server.Close(1011, "restart"))

	d := recv(t, disconnects)
	assert.Equal(t, 1011, d.Code)
	assert.Equal(t, "restart", d.Reason)
	assert.True(t, d.WillRetry)
	assert.True(t, rterrors.IsCode(d.Err, rterrors.CodeConnectionLost))
	lostAt := h.clock.Now()

	h.clock.Advance(d.RetryIn)
	recv(t, connected)
	sync := recv(t, syncs)
	assert.Equal(t, lostAt, sync.LastDisconnectedAt)
	assert.Equal(t, StateConnected, h.client.State())

	_, err := h.client.Send("chat:message", chatMessage{Text: "back"})
	require.NoError(t, err)
	assert.Equal(t, "chat:message", readFrame(t, next).Event)
}

func TestBufferedFramesFlushOnConnect(t *testing.T) {
	h := newHarness(t, nil)
	queued := collect(&h.client.Events().MessageQueued)

	sends := []struct {
		text string
		p    protocol.Priority
	}{
		{"low", protocol.PriorityLow},
		{"high-1", protocol.PriorityHigh},
		{"normal", protocol.PriorityNormal},
		{"high-2", protocol.PriorityHigh},
	}
	var deliveries []*Delivery
	for i, s := range sends {
		d, err := h.client.Send("chat:message", chatMessage{Room: "r1", Text: s.text}, WithPriority(s.p))
		require.NoError(t, err)
		deliveries = append(deliveries, d)
		assert.Equal(t, i+1, recv(t, queued).QueueSize)
	}
	assert.Equal(t, 4, h.client.Info().QueueSize)

	server := h.connect()

	var got []string
	for range sends {
		var m chatMessage
		f := readFrame(t, server)
		require.NoError(t, f.DecodePayload(&m))
		got = append(got, m.Text)
	}
	assert.Equal(t, []string{"high-1", "high-2", "normal", "low"}, got)

	for _, d := range deliveries {
		assert.NoError(t, d.Wait(context.Background()))
	}
	assert.Zero(t, h.client.Info().QueueSize)
}

func TestSendWhileConnected(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	d, err := h.client.Send("chat:message", chatMessage{Room: "r1", Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, d.Wait(context.Background()))
	assert.Empty(t, d.MessageID())

	f := readFrame(t, server)
	assert.Equal(t, "chat:message", f.Event)
	assert.Empty(t, f.MessageID)
	assert.Equal(t, protocol.PriorityNormal, f.Priority)
	assert.Equal(t, protocol.Millis(h.clock.Now()), f.Timestamp)
	assert.Equal(t, protocol.Millis(h.clock.Now().Add(5*time.Minute)), f.ExpiryTime)

	var m chatMessage
	require.NoError(t, f.DecodePayload(&m))
	assert.Equal(t, "hi", m.Text)
}

func TestSendRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := newHarness(t, nil, WithTracer(tp.Tracer("test")))
	server := h.connect()

	d, err := h.client.SendWithAck("chat:message", chatMessage{Text: "hi"})
	require.NoError(t, err)
	readFrame(t, server)
	_, err = h.client.Send("presence", nil)
	require.NoError(t, err)
	readFrame(t, server)

	var sends []sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == observability.SpanSend {
			sends = append(sends, s)
		}
	}
	require.Len(t, sends, 2)
	assert.Contains(t, sends[0].Attributes(), observability.AttrMessageID.String(d.MessageID()))
	assert.Contains(t, sends[1].Attributes(), observability.AttrEvent.String("presence"))
	for _, s := range sends {
		assert.Equal(t, codes.Ok, s.Status().Code)
	}

	// The ack span stays open until the server acknowledges.
	for _, s := range rec.Ended() {
		assert.NotEqual(t, observability.SpanAckRoundTrip, s.Name())
	}
	select {
	case <-d.Done():
		t.Fatal("delivery settled before its ack arrived")
	default:
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.client.Send("", nil)
	assert.Error(t, err)

	for _, event := range []string{protocol.EventPing, protocol.EventPong, protocol.EventAck} {
		_, err = h.client.Send(event, nil)
		assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidArgument), event)
	}

	_, err = h.client.Send("chat:message", nil, WithPriority("urgent"))
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidArgument))

	_, err = h.client.Send("chat:message", nil, WithRequireAck(), WithAckTimeout(-time.Second))
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidArgument))

	_, err = h.client.Send("chat:message", func() {})
	assert.True(t, rterrors.IsCode(err, rterrors.CodeFrameEncode))

	assert.Zero(t, h.client.Info().QueueSize)
}

func TestSendWithAckResolves(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	d, err := h.client.SendWithAck("chat:message", chatMessage{Text: "ack me"})
	require.NoError(t, err)
	require.NotEmpty(t, d.MessageID())

	f := readFrame(t, server)
	assert.Equal(t, d.MessageID(), f.MessageID)
	assert.Equal(t, 1, h.client.Info().PendingAcks)

	ack, err := protocol.NewFrame(protocol.EventAck, protocol.AckPayload{
		MessageID: f.MessageID,
		Status:    protocol.AckRead,
		Timestamp: protocol.Millis(h.clock.Now()),
	})
	require.NoError(t, err)
	writeFrame(t, server, *ack)

	require.NoError(t, d.Wait(context.Background()))
	assert.Equal(t, protocol.AckRead, d.Status())
	assert.Zero(t, h.client.Info().PendingAcks)
}

func TestSendWithAckTimesOut(t *testing.T) {
	h := newHarness(t, nil)
	timeouts := collect(&h.client.Events().AckTimeout)
	server := h.connect()

	d, err := h.client.SendWithAck("chat:message", chatMessage{Text: "lost"}, WithAckTimeout(50*time.Millisecond))
	require.NoError(t, err)
	readFrame(t, server)

	h.clock.Advance(50 * time.Millisecond)
	e := recv(t, timeouts)
	assert.Equal(t, d.MessageID(), e.MessageID)
	assert.Equal(t, "chat:message", e.Event)
	assert.Equal(t, 50*time.Millisecond, e.Timeout)

	err = d.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, rterrors.IsCode(err, rterrors.CodeAckTimeout))
	assert.Zero(t, h.client.Info().PendingAcks)

	// A late ack is ignored.
	ack, err := protocol.NewFrame(protocol.EventAck, protocol.AckPayload{MessageID: d.MessageID(), Status: protocol.AckDelivered})
	require.NoError(t, err)
	writeFrame(t, server, *ack)
	assert.Zero(t, h.client.Info().PendingAcks)
	assert.True(t, rterrors.IsCode(d.Err(), rterrors.CodeAckTimeout))
}

func TestAckTimeoutRemovesBufferedFrame(t *testing.T) {
	h := newHarness(t, nil)
	timeouts := collect(&h.client.Events().AckTimeout)

	_, err := h.client.SendWithAck("chat:message", chatMessage{Text: "never sent"}, WithAckTimeout(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, h.client.Info().QueueSize)

	h.clock.Advance(time.Second)
	recv(t, timeouts)
	assert.Zero(t, h.client.Info().QueueSize)
}

func TestExpiredFramesAreNeverSent(t *testing.T) {
	h := newHarness(t, nil)
	expired := collect(&h.client.Events().MessageExpired)

	stale, err := h.client.SendWithAck("chat:message", chatMessage{Text: "stale"}, WithTTL(time.Second))
	require.NoError(t, err)
	fresh, err := h.client.Send("chat:message", chatMessage{Text: "fresh"}, WithExpiry(h.clock.Now().Add(time.Hour)))
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	server := h.connect()

	e := recv(t, expired)
	assert.Equal(t, stale.MessageID(), e.Frame.MessageID)
	err = stale.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, rterrors.IsCode(err, rterrors.CodeMessageExpired))
	assert.Zero(t, h.client.Info().PendingAcks)

	var m chatMessage
	f := readFrame(t, server)
	require.NoError(t, f.DecodePayload(&m))
	assert.Equal(t, "fresh", m.Text)
	require.NoError(t, fresh.Wait(context.Background()))
}

func TestSendAlreadyExpiredWhileConnected(t *testing.T) {
	h := newHarness(t, nil)
	expired := collect(&h.client.Events().MessageExpired)
	server := h.connect()

	d, err := h.client.Send("chat:message", nil, WithExpiry(h.clock.Now().Add(-time.Second)))
	require.NoError(t, err)
	recv(t, expired)
	assert.True(t, rterrors.IsCode(d.Wait(context.Background()), rterrors.CodeMessageExpired))

	_, err = h.client.Send("presence", nil)
	require.NoError(t, err)
	assert.Equal(t, "presence", readFrame(t, server).Event)
}

func TestQueueFullEvictsAndFails(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Queue.Capacity = 2 })
	full := collect(&h.client.Events().MessageQueueFull)

	low, err := h.client.SendWithAck("chat:message", nil, WithPriority(protocol.PriorityLow))
	require.NoError(t, err)
	_, err = h.client.Send("chat:message", nil)
	require.NoError(t, err)
	_, err = h.client.Send("chat:message", nil, WithPriority(protocol.PriorityHigh))
	require.NoError(t, err)

	e := recv(t, full)
	assert.Equal(t, low.MessageID(), e.Evicted.MessageID)
	assert.Equal(t, 2, e.Capacity)
	assert.True(t, rterrors.IsCode(low.Wait(context.Background()), rterrors.CodeQueueFull))

	info := h.client.Info()
	assert.Equal(t, 2, info.QueueSize)
	assert.Zero(t, info.PendingAcks)
}

func TestWriteFailureBuffersAndReconnects(t *testing.T) {
	client, server := transport.Pipe()
	h := newHarness(t, nil)
	connected := collect(&h.client.Events().Connected)
	disconnects := collect(&h.client.Events().Disconnected)
	h.dialer.QueueConn(client)
	require.NoError(t, h.client.Connect())
	recv(t, connected)

	client.SetWriteError(fmt.Errorf("broken pipe"))
	d, err := h.client.Send("chat:message", chatMessage{Text: "retry me"})
	require.NoError(t, err)

	lost := recv(t, disconnects)
	assert.True(t, lost.WillRetry)
	assert.True(t, rterrors.IsCode(lost.Err, rterrors.CodeWriteFailed))
	code, _, closed := client.CloseStatus()
	assert.True(t, closed)
	assert.Equal(t, transport.CloseGoingAway, code)
	assert.Equal(t, 1, h.client.Info().QueueSize)
	_ = server

	next := h.dialer.QueuePipe()
	h.clock.Advance(lost.RetryIn)
	recv(t, connected)

	var m chatMessage
	f := readFrame(t, next)
	require.NoError(t, f.DecodePayload(&m))
	assert.Equal(t, "retry me", m.Text)
	require.NoError(t, d.Wait(context.Background()))
}

func TestHeartbeatTimeoutReconnects(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Heartbeat.Interval = time.Second
		c.Heartbeat.Timeout = 3 * time.Second
	})
	warnings := collect(&h.client.Events().HeartbeatWarning)
	timeouts := collect(&h.client.Events().HeartbeatTimeout)
	disconnects := collect(&h.client.Events().Disconnected)

	client, server := transport.Pipe()
	h.dialer.QueueConn(client)
	connected := collect(&h.client.Events().Connected)
	require.NoError(t, h.client.Connect())
	recv(t, connected)

	// The server never answers pings.
	for i := 1; i <= 3; i++ {
		h.clock.Advance(time.Second)
		ping := readEvent(t, server, protocol.EventPing)
		var p protocol.PingPayload
		require.NoError(t, ping.DecodePayload(&p))
		assert.Equal(t, uint64(i), p.Sequence)
	}
	w := recv(t, warnings)
	assert.Equal(t, 2*time.Second, w.SinceLastPong)
	assert.Equal(t, HeartbeatWarning, h.client.Info().HeartbeatStatus)

	next := h.dialer.QueuePipe()
	h.clock.Advance(time.Second)
	recv(t, timeouts)

	d := recv(t, disconnects)
	assert.Equal(t, transport.CloseHeartbeatTimeout, d.Code)
	assert.True(t, d.WillRetry)
	assert.True(t, rterrors.IsCode(d.Err, rterrors.CodeHeartbeatTimeout))
	code, _, closed := client.CloseStatus()
	assert.True(t, closed)
	assert.Equal(t, transport.CloseHeartbeatTimeout, code)

	h.clock.Advance(d.RetryIn)
	recv(t, connected)
	assert.Equal(t, HeartbeatHealthy, h.client.Info().HeartbeatStatus)
	_ = next
}

func TestHeartbeatPongKeepsConnection(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Heartbeat.Interval = time.Second
		c.Heartbeat.Timeout = 3 * time.Second
	})
	timeouts := collect(&h.client.Events().HeartbeatTimeout)
	warnings := collect(&h.client.Events().HeartbeatWarning)
	markers := collect(h.client.Events().On("marker"))
	server := h.connect()

	for i := 0; i < 6; i++ {
		h.clock.Advance(time.Second)
		ping := readEvent(t, server, protocol.EventPing)
		pong := protocol.Frame{Event: protocol.EventPong, Payload: ping.Payload, Timestamp: protocol.Millis(h.clock.Now())}
		writeFrame(t, server, pong)
		// Inbound frames are handled in order, so the pong is processed
		// once the marker arrives.
		writeFrame(t, server, protocol.Frame{Event: "marker", Timestamp: 1})
		recv(t, markers)
	}

	assertNone(t, timeouts)
	assertNone(t, warnings)
	assert.Equal(t, HeartbeatHealthy, h.client.Info().HeartbeatStatus)
	assert.Equal(t, StateConnected, h.client.State())
}

func TestInboundPingGetsPong(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	payload, err := json.Marshal(protocol.PingPayload{Timestamp: 42, Sequence: 7})
	require.NoError(t, err)
	writeFrame(t, server, protocol.Frame{Event: protocol.EventPing, Payload: payload, Timestamp: 42})

	pong := readEvent(t, server, protocol.EventPong)
	var p protocol.PongPayload
	require.NoError(t, pong.DecodePayload(&p))
	assert.Equal(t, protocol.PingPayload{Timestamp: 42, Sequence: 7}, p)
}

func TestInboundMessagesAndAutoAck(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Ack.AutoAck = true })
	messages := collect(&h.client.Events().Message)
	chat := collect(h.client.Events().On("chat:message"))
	server := h.connect()

	payload, err := json.Marshal(chatMessage{Room: "r1", Text: "hello"})
	require.NoError(t, err)
	writeFrame(t, server, protocol.Frame{Event: "chat:message", Payload: payload, MessageID: "srv-1", Timestamp: 1})

	assert.Equal(t, "srv-1", recv(t, messages).MessageID)
	assert.Equal(t, "srv-1", recv(t, chat).MessageID)

	ack := readEvent(t, server, protocol.EventAck)
	assert.Equal(t, protocol.PriorityLow, ack.Priority)
	assert.NotEmpty(t, ack.MessageID)
	var p protocol.AckPayload
	require.NoError(t, ack.DecodePayload(&p))
	assert.Equal(t, "srv-1", p.MessageID)
	assert.Equal(t, protocol.AckDelivered, p.Status)
}

func TestManualAck(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	d, err := h.client.Ack("srv-9", protocol.AckRead)
	require.NoError(t, err)
	require.NoError(t, d.Wait(context.Background()))

	ack := readEvent(t, server, protocol.EventAck)
	var p protocol.AckPayload
	require.NoError(t, ack.DecodePayload(&p))
	assert.Equal(t, "srv-9", p.MessageID)
	assert.Equal(t, protocol.AckRead, p.Status)

	_, err = h.client.Ack("", protocol.AckRead)
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidArgument))
	_, err = h.client.Ack("srv-9", "seen")
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidArgument))
}

func TestParseErrorKeepsConnection(t *testing.T) {
	h := newHarness(t, nil)
	parseErrors := collect(&h.client.Events().MessageParseError)
	messages := collect(&h.client.Events().Message)
	server := h.connect()

	require.NoError(t, server.WriteMessage([]byte("not json")))
	e := recv(t, parseErrors)
	assert.Equal(t, []byte("not json"), e.Raw)
	assert.True(t, rterrors.IsCode(e.Err, rterrors.CodeFrameParse))

	writeFrame(t, server, protocol.Frame{Event: "presence", Timestamp: 1})
	assert.Equal(t, "presence", recv(t, messages).Event)
	assert.Equal(t, StateConnected, h.client.State())
}

func TestHandleDecodesPayload(t *testing.T) {
	h := newHarness(t, nil)
	parseErrors := collect(&h.client.Events().MessageParseError)
	got := make(chan chatMessage, 1)
	Handle(h.client, "chat:message", func(m chatMessage, _ protocol.Frame) { got <- m })
	server := h.connect()

	payload, err := json.Marshal(chatMessage{Room: "r1", Text: "typed"})
	require.NoError(t, err)
	writeFrame(t, server, protocol.Frame{Event: "chat:message", Payload: payload, Timestamp: 1})
	assert.Equal(t, "typed", recv(t, got).Text)

	writeFrame(t, server, protocol.Frame{Event: "chat:message", Payload: json.RawMessage(`"just a string"`), Timestamp: 1})
	e := recv(t, parseErrors)
	assert.Equal(t, "chat:message", e.Event)
}

func TestDisconnectStopsReconnection(t *testing.T) {
	client, server := transport.Pipe()
	h := newHarness(t, nil)
	disconnects := collect(&h.client.Events().Disconnected)
	reconnecting := collect(&h.client.Events().Reconnecting)
	connected := collect(&h.client.Events().Connected)
	h.dialer.QueueConn(client)
	require.NoError(t, h.client.Connect())
	recv(t, connected)

	pending, err := h.client.SendWithAck("chat:message", nil)
	require.NoError(t, err)
	readFrame(t, server)

	require.NoError(t, h.client.Disconnect())
	d := recv(t, disconnects)
	assert.Equal(t, transport.CloseNormal, d.Code)
	assert.False(t, d.WillRetry)
	assert.Equal(t, StateDisconnected, h.client.State())

	code, _, closed := client.CloseStatus()
	assert.True(t, closed)
	assert.Equal(t, transport.CloseNormal, code)

	// Past every retry delay but short of the ack timeout.
	h.clock.Advance(10 * time.Second)
	assertNone(t, reconnecting)

	// Frames sent while disconnected wait for the next Connect.
	_, err = h.client.Send("chat:message", nil)
	require.NoError(t, err)
	info := h.client.Info()
	assert.Equal(t, 1, info.QueueSize)
	assert.Equal(t, 1, info.PendingAcks)
	assert.Nil(t, pending.Err())

	require.NoError(t, h.client.Disconnect(), "disconnecting twice is harmless")
	assertNone(t, disconnects)
}

func TestCloseRejectsPending(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	inflight, err := h.client.SendWithAck("chat:message", nil)
	require.NoError(t, err)
	readFrame(t, server)
	require.NoError(t, h.client.Disconnect())
	buffered, err := h.client.Send("chat:message", nil)
	require.NoError(t, err)

	require.NoError(t, h.client.Close())
	require.NoError(t, h.client.Close())

	assert.ErrorIs(t, inflight.Wait(context.Background()), rterrors.ErrClientClosed)
	assert.ErrorIs(t, buffered.Wait(context.Background()), rterrors.ErrClientClosed)

	_, err = h.client.Send("chat:message", nil)
	assert.ErrorIs(t, err, rterrors.ErrClientClosed)
	assert.ErrorIs(t, h.client.Connect(), rterrors.ErrClientClosed)
	assert.ErrorIs(t, h.client.Disconnect(), rterrors.ErrClientClosed)
	assert.Equal(t, StateDisconnected, h.client.Info().State)
}

func TestCloseFromCallback(t *testing.T) {
	h := newHarness(t, nil)
	closed := make(chan error, 1)
	h.client.Events().Connected.Subscribe(func(ConnectedEvent) {
		closed <- h.client.Close()
	})
	h.dialer.QueuePipe()
	require.NoError(t, h.client.Connect())

	assert.NoError(t, recv(t, closed))
	assert.Equal(t, StateDisconnected, h.client.State())
}

func TestWaitForState(t *testing.T) {
	h := newHarness(t, nil)
	h.dialer.QueuePipe()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	go func() { _ = h.client.Connect() }()
	require.NoError(t, h.client.WaitForState(ctx, StateConnected))
	require.NoError(t, h.client.WaitForState(ctx, StateConnected), "returns at once when already there")

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, h.client.WaitForState(short, StateError), context.DeadlineExceeded)
}

func TestTimestampsNeverDecrease(t *testing.T) {
	h := newHarness(t, nil)
	server := h.connect()

	_, err := h.client.Send("a", nil)
	require.NoError(t, err)
	first := readFrame(t, server)

	h.clock.Advance(-time.Second)
	_, err = h.client.Send("b", nil)
	require.NoError(t, err)
	second := readFrame(t, server)

	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
}
