package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"dchat/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

// nextID generates a unique ID for test fixtures
func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, idCounter.Add(1))
}

// UserOptions allows customizing user fixture creation
type UserOptions struct {
	ID           string
	Username     string
	DisplayName  string
	DefaultRoom  string
	PasswordHash string
	CreatedAt    time.Time
}

// NewTestUser creates a test user with sensible defaults
// Pass options to override specific fields
func NewTestUser(opts ...func(*UserOptions)) *domain.User {
	o := &UserOptions{
		ID:           nextID("user"),
		Username:     fmt.Sprintf("testuser%d", idCounter.Load()),
		PasswordHash: "$2a$10$test.hash.for.testing.purposes.only", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.DisplayName == "" {
		o.DisplayName = o.Username
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	return &domain.User{
		ID:           o.ID,
		Username:     o.Username,
		DisplayName:  o.DisplayName,
		DefaultRoom:  o.DefaultRoom,
		PasswordHash: o.PasswordHash,
		CreatedAt:    o.CreatedAt,
	}
}

// User option functions

// WithUserID sets the user ID
func WithUserID(id string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.ID = id
	}
}

// WithUsername sets the username
func WithUsername(username string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.Username = username
	}
}

// WithDisplayName sets the display name
func WithDisplayName(name string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.DisplayName = name
	}
}

// WithDefaultRoom sets the user's default room
func WithDefaultRoom(room string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.DefaultRoom = room
	}
}

// WithPasswordHash sets the password hash
func WithPasswordHash(hash string) func(*UserOptions) {
	return func(o *UserOptions) {
		o.PasswordHash = hash
	}
}

// SessionOptions allows customizing session fixture creation
type SessionOptions struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewTestSession creates a test session with sensible defaults
func NewTestSession(opts ...func(*SessionOptions)) *domain.Session {
	o := &SessionOptions{
		ID:        nextID("session"),
		UserID:    nextID("user"),
		Token:     nextID("token"),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return &domain.Session{
		ID:        o.ID,
		UserID:    o.UserID,
		Token:     o.Token,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

// Session option functions

// WithSessionUserID sets the user ID for the session
func WithSessionUserID(userID string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.UserID = userID
	}
}

// WithToken sets the session token
func WithToken(token string) func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.Token = token
	}
}

// WithExpired creates an expired session
func WithExpired() func(*SessionOptions) {
	return func(o *SessionOptions) {
		o.ExpiresAt = time.Now().Add(-1 * time.Hour)
	}
}

// MessageViewOptions allows customizing message view fixture creation
type MessageViewOptions struct {
	Room              string
	ID                int64
	SenderID          string
	SenderDisplayName string
	HTML              string
	Timestamp         int64
}

// NewTestMessageView creates a test message view with sensible defaults
func NewTestMessageView(opts ...func(*MessageViewOptions)) *domain.MessageView {
	o := &MessageViewOptions{
		Room:      "general",
		ID:        idCounter.Add(1),
		SenderID:  nextID("user"),
		HTML:      "<span>Hello, World!</span>",
		Timestamp: time.Now().UnixMilli(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.SenderDisplayName == "" {
		o.SenderDisplayName = o.SenderID
	}

	return &domain.MessageView{
		Room:              o.Room,
		ID:                o.ID,
		SenderID:          o.SenderID,
		SenderDisplayName: o.SenderDisplayName,
		HTML:              o.HTML,
		Timestamp:         o.Timestamp,
	}
}

// Message view option functions

// WithRoom sets the room
func WithRoom(room string) func(*MessageViewOptions) {
	return func(o *MessageViewOptions) {
		o.Room = room
	}
}

// WithMessageID sets the per-room message id
func WithMessageID(id int64) func(*MessageViewOptions) {
	return func(o *MessageViewOptions) {
		o.ID = id
	}
}

// WithSenderID sets the sender id
func WithSenderID(senderID string) func(*MessageViewOptions) {
	return func(o *MessageViewOptions) {
		o.SenderID = senderID
	}
}

// WithHTML sets the rendered markup
func WithHTML(html string) func(*MessageViewOptions) {
	return func(o *MessageViewOptions) {
		o.HTML = html
	}
}

// NewTestMessageViews creates count sequential views in the same room
func NewTestMessageViews(room string, count int) []*domain.MessageView {
	views := make([]*domain.MessageView, count)
	for i := 0; i < count; i++ {
		views[i] = NewTestMessageView(
			WithRoom(room),
			WithMessageID(int64(i+1)),
		)
	}
	return views
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
