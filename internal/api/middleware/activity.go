package middleware

import (
	"duochat/backend/internal/presence"

	"github.com/gin-gonic/gin"
)

// Activity records the caller's last activity on every authenticated request.
// It never changes the caller's online status.
func Activity(registry *presence.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := UserID(c); userID != "" {
			registry.Touch(userID)
		}
		c.Next()
	}
}
