// Package tracking is the live-tracking subscription registry.
//
// Connections join rooms and receive every message broadcast to them. Two room namespaces exist:
// trip rooms (one per trip, for dispatchers) and token rooms (one per student tracking token, for parents).
package tracking

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/metrics"
)

// events
const (
	EventSubscribeTrip       = "subscribe-trip"
	EventUnsubscribeTrip     = "unsubscribe-trip"
	EventSubscribeTracking   = "subscribe-tracking"
	EventUnsubscribeTracking = "unsubscribe-tracking"
	EventSubscribed          = "subscribed"
	EventUnsubscribed        = "unsubscribed"
	EventError               = "error"
	EventLocationUpdate      = "location-update"
)

const (
	tripRoomPrefix  = "trip-"
	tokenRoomPrefix = "tracking-"
)

var (
	// errors
	errUnknownConn = errors.New("unknown connection")
	errEmptyRoom   = errors.New("room name is required")
)

func TripRoom(tripID string) string { return tripRoomPrefix + tripID }
func TokenRoom(token string) string { return tokenRoomPrefix + token }

// roomKind labels a room for metrics without leaking its identifier.
func roomKind(room string) string {
	switch {
	case strings.HasPrefix(room, tripRoomPrefix):
		return "trip"
	case strings.HasPrefix(room, tokenRoomPrefix):
		return "token"
	}
	return "other"
}

// Message is what travels on a connection in both directions.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Conn is one subscriber connection.
// Send is called on the broadcaster's goroutine, so it queues rather than waiting on the peer.
type Conn interface {
	ID() string
	Send(msg Message) error
}

// Registry is the subscription registry the trip engine broadcasts through.
type Registry interface {
	Register(conn Conn)
	Subscribe(room, connID string) error
	Unsubscribe(room, connID string)
	Broadcast(room, event string, payload interface{}) error
	// OnDisconnect forgets the connection and removes it from every room it joined.
	OnDisconnect(connID string)
	SubscriberCount(room string) int
}

// Hub is the process-local Registry.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]Conn                // {connID: Conn}
	rooms       map[string]map[string]struct{} // {room: {connID}}
	memberships map[string]map[string]struct{} // {connID: {room}}
	logger      core.Logger
}

var _ Registry = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		conns:       make(map[string]Conn),
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
	}
}

func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.ID()]; !ok {
		metrics.Connections.Inc()
	}
	h.conns[conn.ID()] = conn
	h.logger.Debug("client connected", map[string]interface{}{"connId": conn.ID()})
}

func (h *Hub) Subscribe(room, connID string) error {
	if room == "" {
		return errEmptyRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return errUnknownConn
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	if h.memberships[connID] == nil {
		h.memberships[connID] = make(map[string]struct{})
	}
	h.memberships[connID][room] = struct{}{}
	return nil
}

func (h *Hub) Unsubscribe(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(room, connID)
}

// leave must be called with h.mu held.
func (h *Hub) leave(room, connID string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.memberships[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.memberships, connID)
		}
	}
}

func (h *Hub) OnDisconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.memberships[connID] {
		h.leave(room, connID)
	}
	if _, ok := h.conns[connID]; ok {
		delete(h.conns, connID)
		metrics.Connections.Dec()
	}
	h.logger.Debug("client disconnected", map[string]interface{}{"connId": connID})
}

func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends the event to every member of room.
// Every member is attempted; the first delivery error is returned.
func (h *Hub) Broadcast(room, event string, payload interface{}) error {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if conn, ok := h.conns[connID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	msg := Message{Event: event, Data: payload}
	var firstErr error
	for _, conn := range targets {
		if err := conn.Send(msg); err != nil {
			h.logger.Warn("broadcast delivery failed", err, map[string]interface{}{"connId": conn.ID(), "event": event})
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "sending %s to %s", event, conn.ID())
			}
		}
	}

	outcome := metrics.OK
	if firstErr != nil {
		outcome = metrics.Failed
	}
	metrics.Broadcasts.WithLabelValues(roomKind(room), outcome).Inc()
	h.logger.Debug("broadcast", map[string]interface{}{"event": event, "subscribers": len(targets)})
	return firstErr
}
