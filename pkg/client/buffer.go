package client

import (
	"sort"
	"time"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

// queuedFrame is one outbound buffer entry
type queuedFrame struct {
	frame    *protocol.Frame
	delivery *Delivery
	seq      uint64
}

// outboundBuffer holds frames while the socket is down. Entries stay
// sorted by priority rank, then by insertion sequence. It is confined to the
// client loop.
type outboundBuffer struct {
	capacity int
	entries  []*queuedFrame
	nextSeq  uint64
}

func newOutboundBuffer(capacity int) *outboundBuffer {
	return &outboundBuffer{capacity: capacity}
}

// push inserts f, first evicting one entry when the buffer is full. The
// oldest low priority entry goes first, otherwise the oldest entry overall.
func (b *outboundBuffer) push(f *protocol.Frame, d *Delivery) (evicted *queuedFrame) {
	if len(b.entries) >= b.capacity {
		evicted = b.evict()
	}

	b.nextSeq++
	e := &queuedFrame{frame: f, delivery: d, seq: b.nextSeq}
	rank := f.Priority.Rank()

	// Sequence numbers only grow, so a new entry goes after every entry of
	// the same or higher priority.
	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].frame.Priority.Rank() > rank
	})
	b.entries = append(b.entries, nil)
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = e
	return evicted
}

func (b *outboundBuffer) evict() *queuedFrame {
	if len(b.entries) == 0 {
		return nil
	}

	victim := -1
	for i, e := range b.entries {
		if e.frame.Priority.Rank() == protocol.PriorityLow.Rank() {
			victim = i
			break
		}
	}
	if victim < 0 {
		victim = 0
		for i, e := range b.entries {
			if e.seq < b.entries[victim].seq {
				victim = i
			}
		}
	}
	return b.removeAt(victim)
}

func (b *outboundBuffer) removeAt(i int) *queuedFrame {
	e := b.entries[i]
	copy(b.entries[i:], b.entries[i+1:])
	b.entries[len(b.entries)-1] = nil
	b.entries = b.entries[:len(b.entries)-1]
	return e
}

// peek returns the next entry to transmit without removing it
func (b *outboundBuffer) peek() *queuedFrame {
	if len(b.entries) == 0 {
		return nil
	}
	return b.entries[0]
}

// pop removes the head entry
func (b *outboundBuffer) pop() *queuedFrame {
	if len(b.entries) == 0 {
		return nil
	}
	return b.removeAt(0)
}

// purgeExpired removes and returns every entry whose expiry is not after now
func (b *outboundBuffer) purgeExpired(now time.Time) []*queuedFrame {
	var expired []*queuedFrame
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.frame.Expired(now) {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = nil
	}
	b.entries = kept
	return expired
}

// remove drops the entry carrying messageID, if any
func (b *outboundBuffer) remove(messageID string) *queuedFrame {
	if messageID == "" {
		return nil
	}
	for i, e := range b.entries {
		if e.frame.MessageID == messageID {
			return b.removeAt(i)
		}
	}
	return nil
}

// drain empties the buffer and returns everything it held
func (b *outboundBuffer) drain() []*queuedFrame {
	out := b.entries
	b.entries = nil
	return out
}

func (b *outboundBuffer) len() int {
	return len(b.entries)
}
