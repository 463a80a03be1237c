package client

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rterrors "github.com/sdkwork-cloud/openchat-realtime/pkg/errors"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

// pendingAck is one frame waiting for its message:ack
type pendingAck struct {
	messageID string
	event     string
	delivery  *Delivery
	timeout   time.Duration
	sentAt    time.Time
	timer     clockwork.Timer
	span      trace.Span
}

// ackTracker correlates message IDs with waiting deliveries. Every entry is
// settled exactly once: by resolve, by expire, or by reject. It is confined
// to the client loop.
type ackTracker struct {
	clock   clockwork.Clock
	tracer  trace.Tracer
	pending map[string]*pendingAck
}

func newAckTracker(clock clockwork.Clock, tracer trace.Tracer) *ackTracker {
	return &ackTracker{
		clock:   clock,
		tracer:  tracer,
		pending: make(map[string]*pendingAck),
	}
}

// register starts the timeout for messageID. onTimeout runs on the clock's
// goroutine and must hand the entry back to expire on the owning loop.
func (t *ackTracker) register(messageID, event string, d *Delivery, timeout time.Duration, onTimeout func(p *pendingAck)) *pendingAck {
	span := observability.StartFrameSpan(t.tracer, observability.SpanAckRoundTrip, event, messageID)

	p := &pendingAck{
		messageID: messageID,
		event:     event,
		delivery:  d,
		timeout:   timeout,
		sentAt:    t.clock.Now(),
		span:      span,
	}
	p.timer = t.clock.AfterFunc(timeout, func() { onTimeout(p) })
	t.pending[messageID] = p
	return p
}

// take removes the entry for messageID and stops its timer
func (t *ackTracker) take(messageID string) (*pendingAck, bool) {
	p, ok := t.pending[messageID]
	if !ok {
		return nil, false
	}
	delete(t.pending, messageID)
	p.timer.Stop()
	return p, true
}

// resolve settles messageID successfully. Unknown IDs are ignored so late
// and duplicate acks have no effect.
func (t *ackTracker) resolve(messageID string, status protocol.AckStatus) (*pendingAck, bool) {
	p, ok := t.take(messageID)
	if !ok {
		return nil, false
	}
	p.span.SetStatus(codes.Ok, string(status))
	p.span.End()
	p.delivery.complete(status, nil)
	return p, true
}

// expire settles p with an ack timeout error if it is still pending
func (t *ackTracker) expire(p *pendingAck) bool {
	if cur, ok := t.pending[p.messageID]; !ok || cur != p {
		return false
	}
	t.take(p.messageID)
	t.fail(p, rterrors.AckTimeout(p.messageID, p.event, p.timeout))
	return true
}

// reject settles messageID with err
func (t *ackTracker) reject(messageID string, err error) bool {
	p, ok := t.take(messageID)
	if !ok {
		return false
	}
	t.fail(p, err)
	return true
}

// rejectAll settles every pending entry with err
func (t *ackTracker) rejectAll(err error) int {
	n := 0
	for id := range t.pending {
		if t.reject(id, err) {
			n++
		}
	}
	return n
}

func (t *ackTracker) fail(p *pendingAck, err error) {
	observability.EndSpan(p.span, err)
	p.delivery.complete("", err)
}

func (t *ackTracker) has(messageID string) bool {
	_, ok := t.pending[messageID]
	return ok
}

func (t *ackTracker) len() int {
	return len(t.pending)
}
