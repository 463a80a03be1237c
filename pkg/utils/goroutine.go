// Package utils holds test helpers shared by the client and server packages.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakDetector compares the goroutine count after a test body with the
// count before it. Connections shut down asynchronously, so Check polls
// until the count settles or the deadline passes.
type LeakDetector struct {
	tb       testing.TB
	baseline int
	allowed  int
	settle   time.Duration
	interval time.Duration
}

// NewLeakDetector creates a detector reporting failures on tb
func NewLeakDetector(tb testing.TB) *LeakDetector {
	return &LeakDetector{
		tb:       tb,
		settle:   2 * time.Second,
		interval: 20 * time.Millisecond,
	}
}

// Allow tolerates n extra goroutines, for example a shared HTTP test server
func (d *LeakDetector) Allow(n int) *LeakDetector {
	d.allowed = n
	return d
}

// Settle sets how long Check waits for goroutines to exit
func (d *LeakDetector) Settle(timeout time.Duration) *LeakDetector {
	d.settle = timeout
	return d
}

// Start records the baseline
func (d *LeakDetector) Start() {
	// Let goroutines from earlier tests wind down first.
	time.Sleep(d.interval)
	d.baseline = runtime.NumGoroutine()
	d.tb.Logf("goroutines at start: %d", d.baseline)
}

// Check fails the test if more than the allowed number of goroutines
// survive past the settle timeout
func (d *LeakDetector) Check() {
	d.tb.Helper()

	deadline := time.Now().Add(d.settle)
	count := runtime.NumGoroutine()
	for count > d.baseline+d.allowed && time.Now().Before(deadline) {
		time.Sleep(d.interval)
		count = runtime.NumGoroutine()
	}

	leaked := count - d.baseline
	if leaked <= d.allowed {
		d.tb.Logf("no goroutine leak: started with %d, ended with %d", d.baseline, count)
		return
	}

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	d.tb.Errorf("goroutine leak: started with %d, ended with %d (leaked %d, allowed %d)\n%s",
		d.baseline, count, leaked, d.allowed, buf[:n])
}

// VerifyNoLeaks runs fn between Start and Check
func VerifyNoLeaks(tb testing.TB, fn func()) {
	tb.Helper()
	d := NewLeakDetector(tb)
	d.Start()
	fn()
	d.Check()
}
