package models

import (
	"encoding/json"
	"time"
)

// Client -> server events.
const (
	EventJoinConversation = "join:conversation"
	EventMessageSend      = "message:send"
	EventUserTyping       = "user:typing"
	EventMessageRead      = "message:read"
	EventGetStatus        = "get:status"
)

// Server -> client events.
const (
	EventUserStatus      = "user:status"
	EventUserStatusBatch = "user:status:batch"
	EventMessageNew      = "message:new"
	EventMessageStatus   = "message:status"
	EventError           = "error"
)

// Receipt statuses.
const (
	ReceiptSent      = "sent"
	ReceiptDelivered = "delivered"
	ReceiptRead      = "read"
)

// Frame is the wire envelope of every realtime event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound event before serialization.
type Event struct {
	Name string
	Data any
}

// MarshalJSON encodes the event as a Frame.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: e.Name, Data: data})
}

// UnmarshalJSON decodes a Frame; Data is kept as json.RawMessage.
func (e *Event) UnmarshalJSON(b []byte) error {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	e.Name = f.Event
	e.Data = f.Data
	return nil
}

// JoinConversationPayload accepts the counterpart under either key.
type JoinConversationPayload struct {
	CounterpartUserID string `json:"counterpartUserId"`
	UserID            string `json:"userId"`
}

// Counterpart returns whichever identifier the client supplied.
func (p JoinConversationPayload) Counterpart() string {
	if p.CounterpartUserID != "" {
		return p.CounterpartUserID
	}
	return p.UserID
}

type SendMessagePayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ID          string `json:"id" validate:"omitempty,max=64"`
	SenderName  string `json:"senderName"`
}

type TypingPayload struct {
	RecipientID string `json:"recipientId" validate:"required"`
	IsTyping    bool   `json:"isTyping"`
}

// ReadPayload carries either a list of message ids or a single legacy id.
type ReadPayload struct {
	SenderID   string   `json:"senderId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"omitempty,dive,required"`
	MessageID  string   `json:"messageId"`
}

// IDs returns the message ids named by the payload, list form first.
func (p ReadPayload) IDs() []string {
	if len(p.MessageIDs) > 0 {
		return p.MessageIDs
	}
	if p.MessageID != "" {
		return []string{p.MessageID}
	}
	return nil
}

type StatusRequestPayload struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
}

type NewMessageEvent struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MessageStatusEvent struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type ReadReceiptEvent struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	ReadBy    string `json:"readBy"`
	Timestamp int64  `json:"timestamp"`
}

type TypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
