package models_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"duochat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Username: "alice"}
	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	_, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
}

func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	user := &models.User{ID: "user-1"}
	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, "user-1", user.ID)
}

func TestUser_IsFriendOf(t *testing.T) {
	user := &models.User{ID: "a", Friends: pq.StringArray{"b", "c"}}

	assert.True(t, user.IsFriendOf("b"))
	assert.True(t, user.IsFriendOf("c"))
	assert.False(t, user.IsFriendOf("d"))
	assert.False(t, (&models.User{}).IsFriendOf("b"), "nil friend list befriends nobody")
}

// TestUserStructTags catches accidental tag removal during refactoring.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	friends, found := userType.FieldByName("Friends")
	require.True(t, found)
	assert.Contains(t, friends.Tag.Get("gorm"), "type:text[]", "Friends should use PostgreSQL array type")

	msgType := reflect.TypeOf(models.Message{})
	created, found := msgType.FieldByName("CreatedAt")
	require.True(t, found)
	assert.Contains(t, created.Tag.Get("gorm"), "<-:create", "CreatedAt must be create-only")
}

func TestMessageEnsureIdentity(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	msg := &models.Message{}
	msg.EnsureIdentity(now)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, now, msg.CreatedAt)

	kept := &models.Message{ID: "client-id", CreatedAt: now.Add(-time.Hour)}
	kept.EnsureIdentity(now)
	assert.Equal(t, "client-id", kept.ID)
	assert.Equal(t, now.Add(-time.Hour), kept.CreatedAt, "CreatedAt is set once")

	precise := &models.Message{}
	precise.EnsureIdentity(now.Add(1500 * time.Microsecond))
	assert.Equal(t, now.Add(time.Millisecond), precise.CreatedAt, "CreatedAt is cut to milliseconds")
}

func TestEventMarshalsAsFrame(t *testing.T) {
	ev := models.Event{
		Name: models.EventMessageStatus,
		Data: models.MessageStatusEvent{MessageID: "m1", Status: models.ReceiptSent},
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"message:status","data":{"messageId":"m1","status":"sent"}}`, string(raw))

	var decoded models.Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, models.EventMessageStatus, decoded.Name)
	assert.JSONEq(t, `{"messageId":"m1","status":"sent"}`, string(decoded.Data.(json.RawMessage)))
}

func TestReadPayloadIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, models.ReadPayload{MessageIDs: []string{"a", "b"}, MessageID: "c"}.IDs())
	assert.Equal(t, []string{"c"}, models.ReadPayload{MessageID: "c"}.IDs())
	assert.Nil(t, models.ReadPayload{}.IDs())
}

func TestJoinConversationPayloadCounterpart(t *testing.T) {
	assert.Equal(t, "b", models.JoinConversationPayload{CounterpartUserID: "b", UserID: "x"}.Counterpart())
	assert.Equal(t, "x", models.JoinConversationPayload{UserID: "x"}.Counterpart())
}
