package chathub

import (
	"time"

	"duochat/backend/internal/models"
)

// Client is one live realtime connection of a user. A user may hold several.
type Client interface {
	// GetConnID returns the identifier of this physical connection.
	GetConnID() string
	// GetUserID returns the authenticated user that owns the connection.
	GetUserID() string
	// GetConnectedAt returns when the connection was established.
	GetConnectedAt() time.Time

	// GetSendChannel returns the channel the hub writes outbound events to.
	// Only the hub sends on it, and only until Close.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close stops outbound delivery and shuts the connection down. Safe to call more than once.
	Close()
}
