package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is the connection registry for the live queue channel. One Hub is
// constructed per process and handed to the websocket handler and the queue
// service; there is no package-level connection state.
//
// Membership is room-keyed (doctor:<id>, patient:<appointmentID>) and
// presence is a per-user connection count, so duplicate connects from the
// same user are idempotent at the presence level.
type Hub struct {
	log        *zap.Logger
	bufferSize int

	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	presence map[uuid.UUID]int

	// Observability hooks. Optional.
	onDrop       func()
	onDisconnect func()
	onSend       func(eventType string)
}

func NewHub(bufferSize int, log *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		log:        log,
		bufferSize: bufferSize,
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		presence:   make(map[uuid.UUID]int),
	}
}

// OnDrop registers a callback invoked whenever a push is dropped because a
// client's outbound buffer is full.
func (h *Hub) OnDrop(fn func()) { h.onDrop = fn }

// OnDisconnect registers a callback invoked whenever a connection is
// unregistered.
func (h *Hub) OnDisconnect(fn func()) { h.onDisconnect = fn }

// OnSend registers a callback invoked with the event type of every push
// successfully queued to a client.
func (h *Hub) OnSend(fn func(eventType string)) { h.onSend = fn }

// register adds a connection and updates presence. The first connection for
// a user broadcasts user_online to everyone.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.presence[c.userID]++
	first := h.presence[c.userID] == 1
	h.mu.Unlock()

	if first {
		h.broadcastAll(Event{Type: EventUserOnline, Data: c.userID})
	}
}

// unregister drops a connection and all its room memberships immediately.
// The last connection for a user broadcasts user_offline.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.roomSet {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.presence[c.userID]--
	last := h.presence[c.userID] <= 0
	if last {
		delete(h.presence, c.userID)
	}
	// The channel must be closed while holding the lock: broadcasts send
	// under the read lock, only to clients still present in the maps.
	c.close()
	h.mu.Unlock()

	if h.onDisconnect != nil {
		h.onDisconnect()
	}
	if last {
		h.broadcastAll(Event{Type: EventUserOffline, Data: c.userID})
	}
}

// join subscribes a connection to a room. Idempotent.
func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.roomSet[room] = struct{}{}
}

// Broadcast pushes an event to every member of a room. Best-effort: a client
// whose buffer is full misses the event and reconciles by re-fetching.
func (h *Hub) Broadcast(room string, event Event) {
	payload, err := event.marshal()
	if err != nil {
		h.log.Error("failed to encode queue event", zap.String("event", event.Type), zap.Error(err))
		return
	}

	// Non-blocking sends under the read lock; unregister closes a member's
	// channel only under the write lock.
	h.mu.RLock()
	for c := range h.rooms[room] {
		h.send(c, payload, event.Type)
	}
	h.mu.RUnlock()
}

func (h *Hub) broadcastAll(event Event) {
	payload, err := event.marshal()
	if err != nil {
		return
	}

	h.mu.RLock()
	for c := range h.clients {
		h.send(c, payload, event.Type)
	}
	h.mu.RUnlock()
}

func (h *Hub) send(c *Client, payload []byte, eventType string) {
	select {
	case c.send <- payload:
		if h.onSend != nil {
			h.onSend(eventType)
		}
	default:
		h.log.Warn("dropping queue push for slow client",
			zap.String("user_id", c.userID.String()),
			zap.String("event", eventType),
		)
		if h.onDrop != nil {
			h.onDrop()
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.presence[userID] > 0
}

// RoomSize returns the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
