// Package storage holds the at-rest message stores, the friend graph reader
// and the Redis-backed pieces used when several server processes share load.
//
// Stores persist Message content exactly as given; encryption is applied one
// layer up by the message repository.
package storage

import (
	"context"
	"errors"
	"time"

	"duochat/backend/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrUserNotFound = errors.New("user not found")
	// ErrSenderNotFound means the acting user has no users row.
	ErrSenderNotFound = errors.New("sender not found")
)

// MessageStore is the raw persistence contract for Message records.
type MessageStore interface {
	// Create inserts a new record, filling in ID and CreatedAt when empty.
	Create(ctx context.Context, msg *models.Message) error
	// Update rewrites content and, when set, the read flag. The read flag is never cleared.
	Update(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// Conversation returns both directions between two users, oldest first.
	Conversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	// ReceivedSince returns messages addressed to recipientID created strictly after since, oldest first.
	ReceivedSince(ctx context.Context, recipientID string, since time.Time) ([]models.Message, error)
	UnreadCounts(ctx context.Context, recipientID string) ([]models.UnreadCount, error)
	// MarkRead flips unread messages from senderID to recipientID and returns how many changed.
	MarkRead(ctx context.Context, senderID, recipientID string) (int64, error)
	Close() error
}
