package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"dchat/internal/domain"
	"dchat/internal/observability"
)

// Registry tracks which connections are subscribed to which rooms on
// this instance. Rooms are independent: broadcasting into one room never
// contends with membership changes in another.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	mu      sync.RWMutex
	members map[*Client]struct{}

	// Set under mu when the last member leaves, just before the registry
	// entry is dropped. A Join that fetched this room before the drop
	// must not insert into it.
	closed bool
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// Join subscribes the client to the room. Joining a room the client is
// already in is a no-op.
func (r *Registry) Join(name string, c *Client) {
	var member bool
	for {
		r.mu.Lock()
		rm, ok := r.rooms[name]
		if !ok {
			rm = &room{members: make(map[*Client]struct{})}
			r.rooms[name] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// The last member left between the lookup above and this
			// lock, so this room object is no longer in the registry.
			// Inserting into it would strand the client; look the room
			// up again.
			rm.mu.Unlock()
			continue
		}
		_, member = rm.members[c]
		if !member {
			rm.members[c] = struct{}{}
		}
		rm.mu.Unlock()
		break
	}

	if !member {
		observability.RoomSubscriptionsActive.WithLabelValues(name).Inc()
		c.log.Debug("client joined room", slog.String("room", name))
	}
}

// Leave removes the client from the room. Leaving a room the client is
// not in is a no-op. The last member leaving drops the room entry.
func (r *Registry) Leave(name string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[name]
	if !ok {
		return
	}

	rm.mu.Lock()
	_, member := rm.members[c]
	if member {
		delete(rm.members, c)
	}
	empty := len(rm.members) == 0
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()

	if member {
		observability.RoomSubscriptionsActive.WithLabelValues(name).Dec()
		c.log.Debug("client left room", slog.String("room", name))
	}
	if empty {
		delete(r.rooms, name)
	}
}

// Members reports the number of connections subscribed to the room.
func (r *Registry) Members(name string) int {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

// Broadcast pushes the view to every connection subscribed to its room
// on this instance. The push frame is marshaled once and shared across
// members. A member whose send buffer is full is disconnected rather
// than allowed to stall the room.
func (r *Registry) Broadcast(name string, view *domain.MessageView) {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	frame := ServerFrame{Type: TypeReceiveMessage, Message: view}
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to marshal push frame",
			slog.String("error", err.Error()),
			slog.String("room", name),
			slog.Int64("message_id", view.ID))
		return
	}

	var stale []*Client
	var delivered int

	rm.mu.RLock()
	for c := range rm.members {
		if c.enqueue(data) {
			delivered++
		} else {
			stale = append(stale, c)
		}
	}
	rm.mu.RUnlock()

	if delivered > 0 {
		observability.MessagesPushed.WithLabelValues(name).Add(float64(delivered))
	}

	for _, c := range stale {
		c.log.Warn("disconnecting slow client", slog.String("room", name))
		c.shutdown()
	}
}
