package middleware

import (
	"errors"
	"net/http"

	"duochat/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

// Auth rejects requests without a valid bearer token and stores the caller's id.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
			return
		}
		userID, err := verifier.Verify(token)
		if err != nil {
			msg := auth.ErrInvalidToken.Error()
			if errors.Is(err, auth.ErrMissingToken) {
				msg = auth.ErrMissingToken.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
