package handler

import (
	"net/http"

	"duochat/backend/internal/auth"
	"duochat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the web client's origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the handshake and upgrades the connection.
// The token is taken from the "token" query parameter or a bearer header;
// nothing is registered unless it verifies.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return
	}

	userID, err := h.Verifier.Verify(token)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ServeWebSocket",
			"clientIP": c.ClientIP(),
		}).WithError(err).Info("Rejected websocket handshake")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
		return
	}

	// Upgrade writes its own error response.
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithField("function", "ServeWebSocket").WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, userID, conn)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.Run()
}
