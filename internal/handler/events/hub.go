// Package events pushes session activity (typing indicator, appended
// messages) to connected clients over WebSocket or SSE.
package events

import (
	"sync"

	chatservice "github.com/mindecho/backend/internal/service/chat"
)

// subscriberBuffer bounds the per-subscriber queue; slow consumers drop
// events rather than stall the chat engine.
const subscriberBuffer = 16

// Hub fans session events out to subscribers. It implements the manager's
// Notifier interface and never blocks the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan chatservice.Event]struct{}
}

var _ chatservice.Notifier = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan chatservice.Event]struct{})}
}

// Notify delivers the event to every subscriber of its session.
func (h *Hub) Notify(event chatservice.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up. Drop, don't stall.
		}
	}
}

// Subscribe registers interest in one session's events. The returned cancel
// function must be called exactly once.
func (h *Hub) Subscribe(sessionID string) (<-chan chatservice.Event, func()) {
	ch := make(chan chatservice.Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan chatservice.Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[sessionID], ch)
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
