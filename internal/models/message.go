package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a one-to-one text message.
// Content is plaintext in memory and an encryption envelope at rest; only the
// message repository converts between the two.
type Message struct {
	// ID is a UUID string, generated on create when the caller did not supply one.
	ID string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	// SenderID is the identifier of the user who sent the message.
	SenderID string `gorm:"type:varchar(64);not null;index:idx_message_pair,priority:1" json:"sender"`
	// RecipientID is the identifier of the user the message is addressed to.
	RecipientID string `gorm:"type:varchar(64);not null;index:idx_message_pair,priority:2;index:idx_message_recipient" json:"recipient"`
	// Content is the message body.
	Content string `gorm:"type:text;not null" json:"content"`
	// ReadStatus flips false -> true once the recipient has read the conversation.
	ReadStatus bool `gorm:"not null;default:false" json:"readStatus"`
	// CreatedAt is set once on create and never updated.
	CreatedAt time.Time `gorm:"<-:create;index" json:"createdAt"`
}

// BeforeCreate generates a UUID for the message if ID is not set yet.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	m.EnsureIdentity(time.Now())
	return
}

// EnsureIdentity fills in ID and CreatedAt when they are still empty.
// CreatedAt is kept at millisecond precision, the precision clients poll with.
func (m *Message) EnsureIdentity(now time.Time) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.CreatedAt = m.CreatedAt.Truncate(time.Millisecond)
}

// UnreadCount is the number of unread messages a recipient has from one sender.
type UnreadCount struct {
	SenderID string `json:"sender"`
	// Username is filled in by the API layer when a user table is available.
	Username string `gorm:"-" json:"username,omitempty"`
	Count    int64  `json:"count"`
}
