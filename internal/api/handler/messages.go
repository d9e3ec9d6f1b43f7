package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"duochat/backend/internal/api/middleware"
	"duochat/backend/internal/models"
	"duochat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const unknownUsername = "Unknown User"

// polledMessage is a received message with the sender's username attached.
type polledMessage struct {
	models.Message
	SenderName string `json:"senderName,omitempty"`
}

type sendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// SendMessage persists a message through the encrypting repository.
func (h *Handler) SendMessage(c *gin.Context) {
	sender := middleware.UserID(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId and content are required"})
		return
	}

	if h.Friends != nil {
		ok, err := h.Friends.AreFriends(c.Request.Context(), sender, req.RecipientID)
		switch {
		case errors.Is(err, storage.ErrSenderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Sender not found"})
			return
		case errors.Is(err, storage.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
			return
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"function":  "SendMessage",
				"sender":    sender,
				"recipient": req.RecipientID,
			}).WithError(err).Error("Friend lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		case !ok:
			c.JSON(http.StatusForbidden, gin.H{"error": "You can only message your friends"})
			return
		}
	}

	msg := &models.Message{
		SenderID:    sender,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	if err := h.Messages.Save(c.Request.Context(), msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "SendMessage",
			"sender":   sender,
		}).WithError(err).Error("Failed to save message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetConversation returns the conversation with :userId and marks the
// counterpart's messages to the caller as read.
func (h *Handler) GetConversation(c *gin.Context) {
	reader := middleware.UserID(c)
	counterpart := c.Param("userId")

	messages, err := h.Messages.ReadConversation(c.Request.Context(), reader, counterpart)
	if err != nil {
		h.serverError(c, "GetConversation", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(messages))
}

// GetUnreadCounts returns the caller's unread counts grouped by sender.
func (h *Handler) GetUnreadCounts(c *gin.Context) {
	counts, err := h.Messages.UnreadCounts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.serverError(c, "GetUnreadCounts", err)
		return
	}
	if counts == nil {
		counts = []models.UnreadCount{}
	}

	names := h.usernames(c, "GetUnreadCounts", lo.Map(counts, func(u models.UnreadCount, _ int) string {
		return u.SenderID
	}))
	for i := range counts {
		counts[i].Username = displayName(names, counts[i].SenderID)
	}
	c.JSON(http.StatusOK, counts)
}

// PollMessages returns messages received after the unix-millisecond :timestamp.
func (h *Handler) PollMessages(c *gin.Context) {
	ms, err := strconv.ParseInt(c.Param("timestamp"), 10, 64)
	if err != nil || ms < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be unix milliseconds"})
		return
	}

	messages, err := h.Messages.ReceivedSince(c.Request.Context(), middleware.UserID(c), time.UnixMilli(ms))
	if err != nil {
		h.serverError(c, "PollMessages", err)
		return
	}

	names := h.usernames(c, "PollMessages", lo.Map(messages, func(m models.Message, _ int) string {
		return m.SenderID
	}))
	c.JSON(http.StatusOK, lo.Map(nonNil(messages), func(m models.Message, _ int) polledMessage {
		return polledMessage{Message: m, SenderName: displayName(names, m.SenderID)}
	}))
}

func (h *Handler) serverError(c *gin.Context, function string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"user_id":  middleware.UserID(c),
	}).WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}

// usernames looks up display names for ids. It returns nil without a user
// directory, and an empty map when the lookup fails.
func (h *Handler) usernames(c *gin.Context, function string, ids []string) map[string]string {
	if h.Users == nil {
		return nil
	}
	names, err := h.Users.Usernames(c.Request.Context(), lo.Uniq(ids))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"user_id":  middleware.UserID(c),
		}).WithError(err).Warn("Username lookup failed")
		return map[string]string{}
	}
	return names
}

func displayName(names map[string]string, userID string) string {
	if names == nil {
		return ""
	}
	if name := names[userID]; name != "" {
		return name
	}
	return unknownUsername
}

func nonNil(messages []models.Message) []models.Message {
	if messages == nil {
		return []models.Message{}
	}
	return messages
}
