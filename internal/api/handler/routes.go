package handler

import (
	"duochat/backend/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every route of the service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", middleware.Auth(h.Verifier), middleware.Activity(h.Hub.Presence))
	{
		api.POST("/messages", h.SendMessage)
		api.GET("/messages/unread", h.GetUnreadCounts)
		api.GET("/messages/poll/:timestamp", h.PollMessages)
		api.GET("/messages/:userId", h.GetConversation)

		api.GET("/users/status/:userId", h.GetUserStatus)
		api.POST("/users/status", h.GetUsersStatus)
	}
	return r
}
