package realtime

import (
	"errors"
	"sync"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// ErrNotConnected is returned by SendToUser when the user has no sinks.
var ErrNotConnected = errors.New("user not connected")

// Sink receives message-inserted events for one connection.
type Sink interface {
	Send(data.Message) error
}

// Hub maps user ids to their active connections so a message can be pushed
// to every endpoint the receiver currently has open.
type Hub struct {
	mu     sync.RWMutex
	sinks  map[int64]map[int64]Sink
	nextID int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sinks: make(map[int64]map[int64]Sink)}
}

// Register adds a sink for userID and returns the connection id to pass to
// Unregister when the connection closes.
func (h *Hub) Register(userID int64, s Sink) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sinks[userID]; !ok {
		h.sinks[userID] = make(map[int64]Sink)
	}

	h.nextID++
	id := h.nextID
	h.sinks[userID][id] = s
	return id
}

// Unregister removes a previously registered sink.
func (h *Hub) Unregister(userID, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.sinks[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.sinks, userID)
		}
	}
}

// Connections returns how many sinks userID has open.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks[userID])
}

// SendToUser delivers msg to every sink of userID. Delivery is best effort:
// every sink is tried, sinks that fail are unregistered, and the first error
// is returned.
func (h *Hub) SendToUser(userID int64, msg data.Message) error {
	h.mu.RLock()
	conns := make(map[int64]Sink, len(h.sinks[userID]))
	for id, s := range h.sinks[userID] {
		conns[id] = s
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return ErrNotConnected
	}

	var firstErr error
	var failedIDs []int64
	for id, s := range conns {
		if err := s.Send(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	// drop broken sinks so they are not retried on the next message
	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}
