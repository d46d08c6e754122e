package domain

import (
	"context"
	"time"
)

// Message is a stored chat message. Messages are immutable once created:
// the id is assigned by the store at insert time, strictly increasing per
// room, and never reused or renumbered. Raw text never leaves the store;
// only the derived html does.
type Message struct {
	Room      string    `json:"room"`
	ID        int64     `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"-"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageView is the projection of a Message sent to clients and over the
// broker. SenderDisplayName is resolved at query/publish time and falls
// back to the sender id when the user cannot be resolved. Timestamp is
// epoch milliseconds.
type MessageView struct {
	Room              string `json:"room" msgpack:"room"`
	ID                int64  `json:"id" msgpack:"id"`
	SenderID          string `json:"sender_id" msgpack:"sender_id"`
	SenderDisplayName string `json:"sender_display_name" msgpack:"sender_display_name"`
	HTML              string `json:"html" msgpack:"html"`
	Timestamp         int64  `json:"timestamp" msgpack:"timestamp"`
}

// MessageRepository defines the interface for message persistence. Per-room
// id assignment is serialized at the storage layer: for a given room, ids
// observed by any reader form a gap-free strictly increasing sequence.
type MessageRepository interface {
	// Append persists the message atomically, assigning the next id for its
	// room and the server timestamp.
	Append(ctx context.Context, message *Message) error

	// Before returns up to count views with id strictly below beforeID,
	// newest first. A nil beforeID means "start from the newest".
	Before(ctx context.Context, room string, beforeID *int64, count int) ([]*MessageView, error)

	// After returns up to limit views with id strictly above afterID,
	// oldest first. Callers page through by re-invoking with the last id
	// seen; the query is restartable, not a held cursor.
	After(ctx context.Context, room string, afterID int64, limit int) ([]*MessageView, error)
}
