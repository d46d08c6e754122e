package domain

import "errors"

var (
	// ErrUnauthenticated is returned when an operation requires an identity
	// but none is attached to the connection. The connection stays open.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInvalidArgument is returned for malformed requests, e.g. an empty
	// room on send. No state changes.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSessionNotFound = errors.New("session not found")
)
