package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,dive,required"`
}

// GetUserStatus returns the presence snapshot of :userId.
func (h *Handler) GetUserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Presence.Status(c.Param("userId")))
}

// GetUsersStatus returns presence snapshots for a list of users.
func (h *Handler) GetUsersStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user IDs provided"})
		return
	}
	c.JSON(http.StatusOK, h.Hub.Presence.StatusOf(req.UserIDs))
}
