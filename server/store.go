package server

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")
)

// Store persists sessions and their messages.
type Store interface {
	CreateSession(ctx context.Context, userID, title string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]*Session, error)
	Messages(ctx context.Context, sessionID string) ([]*Message, error)
	AppendMessage(ctx context.Context, sessionID, role, content string) (*Message, error)
}
