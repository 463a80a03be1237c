package client

import (
	"context"
	"sync"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

// Delivery is the completion signal returned by Send. A frame without an
// acknowledgment requirement completes once it is written to the socket; an
// acknowledged frame completes when the ack arrives or its timeout fires.
type Delivery struct {
	messageID string
	event     string

	done   chan struct{}
	once   sync.Once
	err    error
	status protocol.AckStatus
}

func newDelivery(event, messageID string) *Delivery {
	return &Delivery{
		event:     event,
		messageID: messageID,
		done:      make(chan struct{}),
	}
}

// MessageID is empty unless an acknowledgment was requested
func (d *Delivery) MessageID() string { return d.messageID }

// Event returns the frame's event name
func (d *Delivery) Event() string { return d.event }

// Done is closed when the outcome is known
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Err returns the failure, or nil while pending or after success
func (d *Delivery) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Status returns the acknowledgment status reported by the peer
func (d *Delivery) Status() protocol.AckStatus {
	select {
	case <-d.done:
		return d.status
	default:
		return ""
	}
}

// Wait blocks until the delivery completes or ctx ends
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// complete records the outcome. Only the first call has any effect.
func (d *Delivery) complete(status protocol.AckStatus, err error) bool {
	first := false
	d.once.Do(func() {
		first = true
		d.status = status
		d.err = err
		close(d.done)
	})
	return first
}
