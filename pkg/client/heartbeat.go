package client

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

// heartbeatHooks is how the monitor reaches the client. schedule must run fn
// on the client loop after d.
type heartbeatHooks interface {
	schedule(d time.Duration, fn func()) clockwork.Timer
	sendPing(p protocol.PingPayload)
	heartbeatWarning(since, interval time.Duration)
	heartbeatTimeout(lastPong time.Time, timeout time.Duration)
}

// heartbeatMonitor sends pings on an interval and declares the connection
// dead when no pong arrives within the timeout. It is confined to the
// client loop.
type heartbeatMonitor struct {
	interval  time.Duration
	timeout   time.Duration
	warnAfter time.Duration
	clock     clockwork.Clock
	hooks     heartbeatHooks

	running  bool
	gen      uint64
	ticker   clockwork.Timer
	deadline clockwork.Timer
	armed    uint64
	status   HeartbeatStatus
	lastPong time.Time
	lastRTT  time.Duration
	seq      uint64
}

func newHeartbeatMonitor(cfg HeartbeatConfig, clock clockwork.Clock, hooks heartbeatHooks) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		warnAfter: time.Duration(float64(cfg.Interval) * cfg.WarningFactor),
		clock:     clock,
		hooks:     hooks,
	}
}

// start begins a fresh cycle. The start instant counts as the last pong.
func (h *heartbeatMonitor) start() {
	h.stop()
	h.running = true
	h.status = HeartbeatHealthy
	h.lastPong = h.clock.Now()
	gen := h.gen
	h.ticker = h.hooks.schedule(h.interval, func() { h.tick(gen) })
}

func (h *heartbeatMonitor) stop() {
	h.gen++
	h.running = false
	if h.ticker != nil {
		h.ticker.Stop()
		h.ticker = nil
	}
	if h.deadline != nil {
		h.deadline.Stop()
		h.deadline = nil
	}
}

func (h *heartbeatMonitor) tick(gen uint64) {
	if !h.running || gen != h.gen {
		return
	}

	now := h.clock.Now()
	since := now.Sub(h.lastPong)

	if h.deadline == nil {
		h.armed++
		armed := h.armed
		h.deadline = h.hooks.schedule(h.timeout, func() { h.expire(gen, armed) })
	}
	h.ticker = h.hooks.schedule(h.interval, func() { h.tick(gen) })

	if since > h.warnAfter {
		h.status = HeartbeatWarning
		h.hooks.heartbeatWarning(since, h.interval)
	}

	h.seq++
	h.hooks.sendPing(protocol.PingPayload{
		Timestamp: protocol.Millis(now),
		Sequence:  h.seq,
	})
}

// pong records a reply. Any pong proves the link is alive, so it clears the
// pending deadline whatever sequence it echoes. The returned RTT is zero
// when the pong carries no timestamp.
func (h *heartbeatMonitor) pong(p protocol.PongPayload) time.Duration {
	if !h.running {
		return 0
	}

	now := h.clock.Now()
	h.lastPong = now
	h.status = HeartbeatHealthy
	if h.deadline != nil {
		h.deadline.Stop()
		h.deadline = nil
	}

	if p.Timestamp > 0 {
		// The echoed timestamp has millisecond precision; measure at the same
		// precision or every sample reads up to 1ms high.
		rtt := time.Duration(protocol.Millis(now)-p.Timestamp) * time.Millisecond
		if rtt < 0 {
			rtt = 0
		}
		h.lastRTT = rtt
		return rtt
	}
	return 0
}

func (h *heartbeatMonitor) expire(gen, armed uint64) {
	// A pong may have cleared this deadline after its timer already fired.
	if !h.running || gen != h.gen || h.deadline == nil || armed != h.armed {
		return
	}
	lastPong := h.lastPong
	h.stop()
	h.status = HeartbeatError
	h.hooks.heartbeatTimeout(lastPong, h.timeout)
}
