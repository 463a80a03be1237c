package utils

import (
	"testing"
	"time"
)

// recordingTB captures failures instead of failing the real test
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper()                       {}
func (r *recordingTB) Logf(string, ...interface{})   {}
func (r *recordingTB) Errorf(string, ...interface{}) { r.failed = true }

func TestLeakDetectorNoLeak(t *testing.T) {
	VerifyNoLeaks(t, func() {
		done := make(chan struct{})
		go func() { close(done) }()
		<-done
	})
}

func TestLeakDetectorWaitsForSlowExit(t *testing.T) {
	VerifyNoLeaks(t, func() {
		go time.Sleep(100 * time.Millisecond)
	})
}

func TestLeakDetectorDetectsLeak(t *testing.T) {
	rec := &recordingTB{TB: t}
	stop := make(chan struct{})
	defer close(stop)

	d := NewLeakDetector(rec).Settle(100 * time.Millisecond)
	d.Start()
	go func() { <-stop }()
	d.Check()

	if !rec.failed {
		t.Error("expected the detector to report the blocked goroutine")
	}
}

func TestLeakDetectorAllow(t *testing.T) {
	rec := &recordingTB{TB: t}
	stop := make(chan struct{})
	defer close(stop)

	d := NewLeakDetector(rec).Allow(1).Settle(100 * time.Millisecond)
	d.Start()
	go func() { <-stop }()
	d.Check()

	if rec.failed {
		t.Error("one extra goroutine is allowed")
	}
}
