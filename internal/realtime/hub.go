// file: internal/realtime/hub.go
// version: 2.0.0
// guid: 4b9e2c17-a83d-4f06-b5e1-d2c7f8a04e39

// Package realtime relays watch-party playback events between websocket
// clients that share a room.
package realtime

import (
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metrics"
)

// Wire event names.
const (
	EventJoinRoom    = "join_room"
	EventPlayerEvent = "player_event"
	EventServerEvent = "server_event"
)

// Message is one JSON text frame in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomData struct {
	Room string `json:"room"`
}

// Hub tracks connected clients and the room each one has joined. A client
// belongs to at most one room; joining another replaces the membership.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]string
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]string),
	}
}

// Register adds a connected client with no room.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = ""
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetRelayConnections(n)
	log := logging.With("realtime")
	log.Debug().Str("client_id", c.ID()).Int("total_clients", n).Msg("watch-party client connected")
	return true
}

// Unregister drops the client and its membership and closes its send
// channel. Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	room, ok := h.clients[c]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.leaveLocked(c, room)
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetRelayConnections(n)
	log := logging.With("realtime")
	log.Debug().Str("client_id", c.ID()).Int("total_clients", n).Msg("watch-party client disconnected")
}

// Join moves c into room, leaving any room it was in.
func (h *Hub) Join(c *Client, room string) bool {
	room = strings.TrimSpace(room)
	if room == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.clients[c]
	if !ok {
		return false
	}
	if prev == room {
		return true
	}
	h.leaveLocked(c, prev)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.clients[c] = room
	return true
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if room == "" {
		return
	}
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Publish sends payload, wrapped as a server_event, to every member of room
// except sender. The sender does not have to be a member. Clients whose
// buffer is full miss the message. It returns how many clients got it.
func (h *Hub) Publish(sender *Client, room string, payload json.RawMessage) int {
	frame, err := json.Marshal(Message{Event: EventServerEvent, Data: payload})
	if err != nil {
		logging.Warn().Err(err).Str("room", room).Msg("failed to encode watch-party event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for member := range h.rooms[room] {
		if member == sender {
			continue
		}
		select {
		case member.send <- frame:
			delivered++
			metrics.IncRelayMessage("out")
		default:
			metrics.IncRelayMessage("dropped")
			logging.Warn().Str("client_id", member.ID()).Str("room", room).Msg("client buffer full, dropping watch-party event")
		}
	}
	return delivered
}

// RoomOf returns the room c has joined, or "".
func (h *Hub) RoomOf(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[c]
}

// Members returns the ids of the clients in room, sorted.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		ids = append(ids, c.ID())
	}
	sort.Strings(ids)
	return ids
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*Client]string)
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()
	metrics.SetRelayConnections(0)
}

// handle dispatches one inbound frame from c.
func (h *Hub) handle(c *Client, raw []byte) {
	log := logging.With("realtime")
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("client_id", c.ID()).Msg("ignoring malformed frame")
		return
	}
	metrics.IncRelayMessage("in")

	var target roomData
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &target); err != nil {
			log.Debug().Err(err).Str("event", msg.Event).Msg("ignoring frame without room")
			return
		}
	}

	target.Room = strings.TrimSpace(target.Room)

	switch msg.Event {
	case EventJoinRoom:
		if h.Join(c, target.Room) {
			log.Info().Str("client_id", c.ID()).Str("room", target.Room).Msg("client joined room")
		}
	case EventPlayerEvent:
		if target.Room == "" {
			return
		}
		h.Publish(c, target.Room, msg.Data)
	default:
		log.Debug().Str("event", msg.Event).Msg("ignoring unknown event")
	}
}
