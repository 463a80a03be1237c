package server

import (
	"sync"
)

// hub tracks open sessions for broadcasting
type hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newHub() *hub {
	return &hub{sessions: make(map[string]*session)}
}

func (h *hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

func (h *hub) remove(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; !ok {
		return false
	}
	delete(h.sessions, s.id)
	return true
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// snapshot returns every session except skip
func (h *hub) snapshot(skip *session) []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if s != skip {
			out = append(out, s)
		}
	}
	return out
}

// broadcast writes data to every session but from and returns how many
// writes succeeded. Sessions whose write fails are closed.
func (h *hub) broadcast(from *session, kind string, data []byte) int {
	sent := 0
	for _, s := range h.snapshot(from) {
		if err := s.write(kind, data); err != nil {
			s.logger.WithError(err).Debug("broadcast write failed, closing session")
			s.close()
			continue
		}
		sent++
	}
	return sent
}
