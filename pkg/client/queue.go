package client

import (
	"fmt"
	"sync"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
)

// serialQueue runs submitted functions one at a time, in submission order,
// on a single goroutine. Submitting never blocks. After stop, functions
// already queued still run, then the goroutine exits.
type serialQueue struct {
	name   string
	logger logging.Logger

	mu      sync.Mutex
	pending []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSerialQueue(name string, logger logging.Logger) *serialQueue {
	q := &serialQueue{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// post queues fn and reports whether the queue accepted it
func (q *serialQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// stop rejects further posts. It does not wait; use done for that.
func (q *serialQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			stopped := q.stopped
			q.mu.Unlock()
			if stopped {
				return
			}
			<-q.wake
			continue
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.call(fn)
	}
}

func (q *serialQueue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("recovered panic",
				logging.String("queue", q.name),
				logging.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
