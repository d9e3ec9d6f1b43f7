// Package message is the only path between application code and stored
// messages. Content handed in and out is plaintext; content written to the
// store is an encryption envelope.
package message

import (
	"context"
	"errors"
	"time"

	"duochat/backend/internal/encryption"
	"duochat/backend/internal/models"
	"duochat/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// Repository wraps a MessageStore with the encryption codec.
type Repository struct {
	store storage.MessageStore
	codec *encryption.Codec
}

func NewRepository(store storage.MessageStore, codec *encryption.Codec) *Repository {
	return &Repository{store: store, codec: codec}
}

// Save persists a new message. msg keeps its plaintext content and receives
// the ID and CreatedAt assigned by the store.
func (r *Repository) Save(ctx context.Context, msg *models.Message) error {
	record := *msg
	record.Content = r.seal(msg.ID, msg.Content)
	if err := r.store.Create(ctx, &record); err != nil {
		return err
	}
	msg.ID = record.ID
	msg.CreatedAt = record.CreatedAt
	return nil
}

// Update re-persists an existing message. Content that is already an
// envelope under the current key is written as is, never encrypted twice.
func (r *Repository) Update(ctx context.Context, msg *models.Message) error {
	record := *msg
	record.Content = r.seal(msg.ID, msg.Content)
	return r.store.Update(ctx, &record)
}

// FindByID returns one message with plaintext content.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	msg, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Content = r.open(msg.ID, msg.Content)
	return msg, nil
}

// Conversation returns every message between two users, oldest first.
func (r *Repository) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	messages, err := r.store.Conversation(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return r.openAll(messages), nil
}

// ReadConversation loads the conversation as seen by reader and marks every
// message the counterpart sent to reader as read, reflecting that in the result.
func (r *Repository) ReadConversation(ctx context.Context, readerID, counterpartID string) ([]models.Message, error) {
	messages, err := r.Conversation(ctx, readerID, counterpartID)
	if err != nil {
		return nil, err
	}

	changed, err := r.store.MarkRead(ctx, counterpartID, readerID)
	if err != nil {
		return nil, err
	}
	if changed > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "ReadConversation",
			"reader":   readerID,
			"sender":   counterpartID,
			"changed":  changed,
		}).Debug("Marked messages as read")
	}

	for i := range messages {
		if messages[i].SenderID == counterpartID && messages[i].RecipientID == readerID {
			messages[i].ReadStatus = true
		}
	}
	return messages, nil
}

// ReceivedSince returns messages addressed to recipientID after since.
func (r *Repository) ReceivedSince(ctx context.Context, recipientID string, since time.Time) ([]models.Message, error) {
	messages, err := r.store.ReceivedSince(ctx, recipientID, since)
	if err != nil {
		return nil, err
	}
	return r.openAll(messages), nil
}

// UnreadCounts returns unread message counts grouped by sender.
func (r *Repository) UnreadCounts(ctx context.Context, recipientID string) ([]models.UnreadCount, error) {
	return r.store.UnreadCounts(ctx, recipientID)
}

// openAll decrypts each record on its own; a bad record never affects the others.
func (r *Repository) openAll(messages []models.Message) []models.Message {
	for i := range messages {
		messages[i].Content = r.open(messages[i].ID, messages[i].Content)
	}
	return messages
}

func (r *Repository) seal(id, content string) string {
	if content == "" {
		return content
	}
	if r.codec.IsEnvelope(content) {
		logrus.WithFields(logrus.Fields{
			"function":   "seal",
			"message_id": id,
		}).Debug("Content is already encrypted, skipping")
		return content
	}

	sealed, err := r.codec.Encrypt(content)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "seal",
			"message_id": id,
		}).WithError(err).Error("Encryption failed, storing content unencrypted")
		return content
	}
	return sealed
}

func (r *Repository) open(id, content string) string {
	plain, err := r.codec.Decrypt(content)
	switch {
	case err == nil:
		return plain
	case errors.Is(err, encryption.ErrNotEnvelope):
		// legacy or degraded write stored as plaintext
		return content
	default:
		logrus.WithFields(logrus.Fields{
			"function":   "open",
			"message_id": id,
		}).WithError(err).Warn("Decryption failed, returning stored content")
		return content
	}
}
