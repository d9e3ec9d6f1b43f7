package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"duochat/backend/internal/config"
	"duochat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID      string
	UserID      string
	ConnectedAt time.Time
	Conn        *websocket.Conn
	Hub         *ManagerService
	Send        chan models.Event

	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded, already authenticated connection.
func NewWebSocketClient(hub *ManagerService, userID string, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		Conn:        conn,
		Hub:         hub,
		Send:        make(chan models.Event, config.ClientSendBuffer),
	}
}

func (c *WebSocketClient) GetConnID() string                   { return c.ConnID }
func (c *WebSocketClient) GetUserID() string                   { return c.UserID }
func (c *WebSocketClient) GetConnectedAt() time.Time           { return c.ConnectedAt }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame and hang up.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

func (c *WebSocketClient) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"function": "readPump",
					"conn_id":  c.ConnID,
				}).WithError(err).Warn("Error reading message")
			}
			return
		}

		c.Hub.Submit(c.Hub.Decode(ctx, c, message))
	}
}

// writePump writes every event from Send as its own text frame and keeps the
// connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "writePump",
					"conn_id":  c.ConnID,
					"event":    ev.Name,
				}).WithError(err).Error("Error encoding event")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
