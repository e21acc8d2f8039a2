// Package hub fans session events out to every member of a stream's room.
//
// Delivery is best effort: Broadcast never blocks, and a member whose queue is
// full misses the event. Broadcasts are serialized, so events sent to a room
// reach each member in emission order.
package hub

import (
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrStreamIDRequired = errors.New("stream id is required")
	ErrMemberClosed     = errors.New("member closed")
	ErrQueueFull        = errors.New("member queue full")
)

// Message is one room event.
type Message struct {
	Event     string
	StreamID  string
	Data      any
	Timestamp time.Time
}

// Member receives room events. Send must not block.
type Member interface {
	ID() string
	Send(msg Message) error
}

// Mirror receives a copy of every broadcast, e.g. an MQTT bridge. Publish runs
// under the hub lock and must not block.
type Mirror interface {
	Publish(msg Message)
}

// Stats is a snapshot of delivery counters.
type Stats struct {
	Broadcasts uint64
	Sent       uint64
	Dropped    uint64
	Rooms      int
	Members    int
}

// Hub tracks room membership.
type Hub struct {
	mu          sync.Mutex
	rooms       map[string]map[string]Member
	memberships map[string]map[string]struct{}
	mirror      Mirror

	broadcasts atomic.Uint64
	sent       atomic.Uint64
	dropped    atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithMirror copies every broadcast to m.
func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		rooms:       make(map[string]map[string]Member),
		memberships: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join adds m to the room for streamID. Joining twice is a no-op.
func (h *Hub) Join(m Member, streamID string) error {
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return ErrStreamIDRequired
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[streamID]
	if !ok {
		room = make(map[string]Member)
		h.rooms[streamID] = room
	}
	room[m.ID()] = m

	joined, ok := h.memberships[m.ID()]
	if !ok {
		joined = make(map[string]struct{})
		h.memberships[m.ID()] = joined
	}
	joined[streamID] = struct{}{}
	return nil
}

// Leave removes memberID from one room.
func (h *Hub) Leave(memberID, streamID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(memberID, streamID)
}

// Disconnect removes memberID from every room it joined.
func (h *Hub) Disconnect(memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for streamID := range h.memberships[memberID] {
		h.leaveLocked(memberID, streamID)
	}
	delete(h.memberships, memberID)
}

func (h *Hub) leaveLocked(memberID, streamID string) {
	if room, ok := h.rooms[streamID]; ok {
		delete(room, memberID)
		if len(room) == 0 {
			delete(h.rooms, streamID)
		}
	}
	if joined, ok := h.memberships[memberID]; ok {
		delete(joined, streamID)
		if len(joined) == 0 {
			delete(h.memberships, memberID)
		}
	}
}

// Broadcast delivers an event to every current member of the room and returns
// how many members accepted it.
func (h *Hub) Broadcast(streamID, event string, data any) int {
	msg := Message{
		Event:     event,
		StreamID:  streamID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcasts.Add(1)
	delivered := 0
	for id, m := range h.rooms[streamID] {
		if err := m.Send(msg); err != nil {
			h.dropped.Add(1)
			if errors.Is(err, ErrMemberClosed) {
				log.Printf("[hub] member %s closed, removing from %s", id, streamID)
				h.leaveLocked(id, streamID)
			}
			continue
		}
		h.sent.Add(1)
		delivered++
	}

	if h.mirror != nil {
		h.mirror.Publish(msg)
	}
	return delivered
}

// Members returns the number of members in a room.
func (h *Hub) Members(streamID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[streamID])
}

// Stats returns the delivery counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	rooms := len(h.rooms)
	members := len(h.memberships)
	h.mu.Unlock()

	return Stats{
		Broadcasts: h.broadcasts.Load(),
		Sent:       h.sent.Load(),
		Dropped:    h.dropped.Load(),
		Rooms:      rooms,
		Members:    members,
	}
}
