package client

import (
	cryptorand "crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"
)

// Backoff computes reconnection delays
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the fraction of the base delay added or removed at random
	Jitter float64
	// Rand returns a value in [0, 1). Defaults to a crypto/rand source.
	Rand func() float64
}

// Base returns min(Initial * Multiplier^(attempt-1), Max) for a 1-based attempt
func (b Backoff) Base(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}

// Delay returns Base(attempt) moved by up to ±Jitter of itself, never below
// Initial
func (b Backoff) Delay(attempt int) time.Duration {
	base := float64(b.Base(attempt))

	rnd := b.Rand
	if rnd == nil {
		rnd = secureRandFloat64
	}
	delay := base + base*b.Jitter*(rnd()*2-1)

	if delay < float64(b.Initial) {
		delay = float64(b.Initial)
	}
	return time.Duration(delay)
}

// secureRandFloat64 returns a cryptographically random float64 in [0, 1).
// A failing entropy source yields 0.5, which means no jitter.
func secureRandFloat64() float64 {
	n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / float64(1<<53)
}

// reconnectScheduler counts attempts and owns the single pending retry timer.
// It is confined to the client loop.
type reconnectScheduler struct {
	backoff     Backoff
	maxAttempts int
	attempts    int
	timer       clockwork.Timer
	delay       time.Duration
	gen         uint64
}

func newReconnectScheduler(cfg ReconnectConfig, rnd func() float64) *reconnectScheduler {
	return &reconnectScheduler{
		backoff: Backoff{
			Initial:    cfg.InitialDelay,
			Max:        cfg.MaxDelay,
			Multiplier: cfg.Multiplier,
			Jitter:     cfg.Jitter,
			Rand:       rnd,
		},
		maxAttempts: cfg.MaxAttempts,
	}
}

// next consumes an attempt and returns its delay, or ok=false once
// attempts have reached the maximum
func (s *reconnectScheduler) next() (attempt int, delay time.Duration, ok bool) {
	if s.attempts >= s.maxAttempts {
		return s.attempts, 0, false
	}
	s.attempts++
	return s.attempts, s.backoff.Delay(s.attempts), true
}

// arm replaces any pending timer. fire receives the generation it was armed
// with so the caller can drop stale expirations.
func (s *reconnectScheduler) arm(clock clockwork.Clock, delay time.Duration, fire func(gen uint64)) {
	s.cancel()
	gen := s.gen
	s.delay = delay
	s.timer = clock.AfterFunc(delay, func() { fire(gen) })
}

// fired reports whether gen is the live timer and clears it
func (s *reconnectScheduler) fired(gen uint64) bool {
	if gen != s.gen || s.timer == nil {
		return false
	}
	s.timer = nil
	return true
}

func (s *reconnectScheduler) pending() bool {
	return s.timer != nil
}

func (s *reconnectScheduler) cancel() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *reconnectScheduler) reset() {
	s.attempts = 0
}

// exhaust forces the counter to the maximum so nothing is retried
func (s *reconnectScheduler) exhaust() {
	s.cancel()
	s.attempts = s.maxAttempts
}
