package chathub_test

import (
	"testing"

	"duochat/backend/internal/chathub"
	"duochat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRooms_JoinIsIdempotent(t *testing.T) {
	rooms := chathub.NewRooms()
	c := newMockClient("user_A")

	assert.True(t, rooms.Join("conversation:a-b", c))
	assert.False(t, rooms.Join("conversation:a-b", c))
	assert.Equal(t, 1, rooms.Broadcast("conversation:a-b", models.Event{Name: models.EventUserTyping}, ""))
	assert.Len(t, c.RecvChannel, 1)
}

func TestRooms_LeaveAll(t *testing.T) {
	rooms := chathub.NewRooms()
	a := newMockClient("user_A")
	b := newMockClient("user_B")

	rooms.Join("user:user_A", a)
	rooms.Join("conversation:user_A-user_B", a)
	rooms.Join("conversation:user_A-user_B", b)

	left := rooms.LeaveAll(a)
	assert.ElementsMatch(t, []string{"user:user_A", "conversation:user_A-user_B"}, left)
	ev := models.Event{Name: models.EventUserTyping}
	assert.Zero(t, rooms.Broadcast("user:user_A", ev, ""))
	assert.Equal(t, 1, rooms.Broadcast("conversation:user_A-user_B", ev, ""))
	assert.Len(t, a.RecvChannel, 0)
	assert.False(t, rooms.Leave("conversation:user_A-user_B", a))
	assert.Empty(t, rooms.LeaveAll(a))
}

func TestRooms_BroadcastSkipsExcludedConnection(t *testing.T) {
	rooms := chathub.NewRooms()
	phone := newMockClient("user_A")
	laptop := newMockClient("user_A")
	rooms.Join("user:user_A", phone)
	rooms.Join("user:user_A", laptop)

	ev := models.Event{Name: models.EventUserTyping, Data: models.TypingEvent{UserID: "user_B", IsTyping: true}}
	n := rooms.Broadcast("user:user_A", ev, phone.GetConnID())

	assert.Equal(t, 1, n)
	assert.Len(t, phone.RecvChannel, 0)
	assert.Equal(t, ev, <-laptop.RecvChannel)
	assert.Zero(t, rooms.Broadcast("user:nobody", ev, ""))
}

func TestRooms_BroadcastDropsForFullClient(t *testing.T) {
	rooms := chathub.NewRooms()
	slow := newMockClient("user_A")
	rooms.Join("user:user_A", slow)

	ev := models.Event{Name: models.EventMessageNew}
	for i := 0; i < cap(slow.RecvChannel); i++ {
		assert.Equal(t, 1, rooms.Broadcast("user:user_A", ev, ""))
	}
	assert.Equal(t, 0, rooms.Broadcast("user:user_A", ev, ""))
	assert.False(t, slow.IsClosed())
}
