package domain

import (
	"context"
	"time"
)

// User represents a chat user identity. DisplayName and DefaultRoom are
// optional; an empty DisplayName means callers fall back to the user id.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name,omitempty"`
	DefaultRoom  string    `json:"default_room,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateDefaultRoom(ctx context.Context, userID, room string) error
}

// Identity is the boundary to the identity collaborator. The chat core
// never manages passwords, sessions, or roles through this interface.
type Identity interface {
	// ResolveDisplayName returns the display name for a user id, falling
	// back to the id itself when the user cannot be resolved. It never
	// fails an operation over a missing display name.
	ResolveDisplayName(ctx context.Context, userID string) string

	// DefaultRoom returns the user's persisted default room, empty if unset.
	DefaultRoom(ctx context.Context, userID string) (string, error)

	// SetDefaultRoom persists the user's default room. A no-op if unchanged.
	SetDefaultRoom(ctx context.Context, userID, room string) error
}
