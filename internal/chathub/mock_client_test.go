package chathub_test

import (
	"sync/atomic"
	"time"

	"duochat/backend/internal/chathub"
	"duochat/backend/internal/models"

	"github.com/google/uuid"
)

var _ chathub.Client = (*MockClient)(nil)

type MockClient struct {
	connID      string
	userID      string
	connectedAt time.Time
	RecvChannel chan models.Event
	closed      atomic.Bool
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		connID:      userID + "-" + uuid.NewString(),
		userID:      userID,
		connectedAt: time.Now(),
		RecvChannel: make(chan models.Event, 64),
	}
}

func (c *MockClient) GetConnID() string                   { return c.connID }
func (c *MockClient) GetUserID() string                   { return c.userID }
func (c *MockClient) GetConnectedAt() time.Time           { return c.connectedAt }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Store(true)
}

func (c *MockClient) IsClosed() bool {
	return c.closed.Load()
}
