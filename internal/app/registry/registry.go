package registry

import (
	"context"
	"log/slog"

	"parley/internal/core/contracts"
	"parley/pkg/logging"
)

type entry struct {
	client contracts.Client
	seq    uint64
}

// Registry holds every live connection together with the presence and room
// state derived from them. It is constructed at start-up, owned by the relay
// loop and cleared at shutdown; none of its methods lock.
type Registry struct {
	clients  map[string]entry // connection id → client
	presence *Presence
	rooms    *Rooms
	seq      uint64
	log      *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		clients:  make(map[string]entry),
		presence: NewPresence(),
		rooms:    NewRooms(),
		log:      log,
	}
}

func (h *Registry) Presence() *Presence { return h.presence }
func (h *Registry) Rooms() *Rooms       { return h.rooms }

// Register tracks c and makes it the presence target of its user.
func (h *Registry) Register(c contracts.Client) {
	h.seq++
	h.clients[c.ID()] = entry{client: c, seq: h.seq}
	h.presence.Register(c.UserID(), c.ID())
}

// Unregister forgets c and removes it from every room, returning the rooms it
// left. Presence is only cleared when c is still the user's current
// connection; if the user has other live connections the most recent one
// takes over.
func (h *Registry) Unregister(c contracts.Client) []string {
	if _, ok := h.clients[c.ID()]; !ok {
		return nil
	}
	delete(h.clients, c.ID())
	left := h.rooms.LeaveAll(c.ID())
	if h.presence.Unregister(c.UserID(), c.ID()) {
		if next, ok := h.latestFor(c.UserID()); ok {
			h.presence.Register(c.UserID(), next)
		}
	}
	return left
}

func (h *Registry) latestFor(userID string) (string, bool) {
	var (
		best    string
		bestSeq uint64
	)
	for id, e := range h.clients {
		if e.client.UserID() == userID && e.seq > bestSeq {
			best, bestSeq = id, e.seq
		}
	}
	return best, bestSeq > 0
}

func (h *Registry) Client(connID string) (contracts.Client, bool) {
	e, ok := h.clients[connID]
	return e.client, ok
}

// Len is the number of live connections.
func (h *Registry) Len() int { return len(h.clients) }

// SendTo delivers data to one connection. Unknown connections and full send
// buffers drop the frame.
func (h *Registry) SendTo(ctx context.Context, connID string, data []byte) bool {
	e, ok := h.clients[connID]
	if !ok {
		return false
	}
	if err := e.client.Send(ctx, data); err != nil {
		h.log.WarnContext(ctx, "registry - send - frame dropped", logging.Conn(connID), logging.User(e.client.UserID()), logging.Err(err))
		return false
	}
	return true
}

// SendToUser delivers data to the user's current connection, if any.
func (h *Registry) SendToUser(ctx context.Context, userID string, data []byte) bool {
	connID, ok := h.presence.Resolve(userID)
	if !ok {
		return false
	}
	return h.SendTo(ctx, connID, data)
}

// Broadcast delivers data to every member of roomID except exclude and
// returns the number of connections reached.
func (h *Registry) Broadcast(ctx context.Context, roomID string, data []byte, exclude string) int {
	n := 0
	for _, connID := range h.rooms.Members(roomID) {
		if connID == exclude {
			continue
		}
		if h.SendTo(ctx, connID, data) {
			n++
		}
	}
	return n
}

// BroadcastAll delivers data to every live connection.
func (h *Registry) BroadcastAll(ctx context.Context, data []byte) int {
	n := 0
	for connID := range h.clients {
		if h.SendTo(ctx, connID, data) {
			n++
		}
	}
	return n
}

// Clear closes every connection and resets all state.
func (h *Registry) Clear() {
	for _, e := range h.clients {
		e.client.Close()
	}
	h.clients = make(map[string]entry)
	h.presence.clear()
	h.rooms.clear()
}
