package chathub_test

import (
	"context"

	"duochat/backend/internal/models"
	"duochat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) AreFriends(ctx context.Context, userID, counterpartID string) (bool, error) {
	args := m.Called(ctx, userID, counterpartID)
	return args.Bool(0), args.Error(1)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Join(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MockDirectory) Leave(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MockDirectory) Joined(ctx context.Context, roomID, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

// fakeBridge records published emits and replays injected remote ones.
type fakeBridge struct {
	published chan storage.BridgeMessage
	incoming  chan storage.BridgeMessage
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		published: make(chan storage.BridgeMessage, 64),
		incoming:  make(chan storage.BridgeMessage, 64),
	}
}

func (b *fakeBridge) Publish(_ context.Context, room string, ev models.Event) error {
	b.published <- storage.BridgeMessage{Room: room, Event: ev}
	return nil
}

func (b *fakeBridge) Subscribe(context.Context) <-chan storage.BridgeMessage {
	return b.incoming
}
