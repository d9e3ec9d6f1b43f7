package handler

import (
	"context"

	"duochat/backend/internal/auth"
	"duochat/backend/internal/chathub"
	"duochat/backend/internal/message"
)

// UserDirectory resolves display names of users.
type UserDirectory interface {
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
}

// Handler serves the HTTP and WebSocket surface of the chat core.
type Handler struct {
	Hub      *chathub.ManagerService
	Messages *message.Repository
	Verifier *auth.Verifier

	// Friends is nil when the deployment has no friend graph.
	Friends chathub.Authorizer
	// Users is nil when the deployment has no user table; responses then carry no usernames.
	Users UserDirectory
}

func NewHandler(hub *chathub.ManagerService, messages *message.Repository, verifier *auth.Verifier, friends chathub.Authorizer) *Handler {
	return &Handler{
		Hub:      hub,
		Messages: messages,
		Verifier: verifier,
		Friends:  friends,
	}
}
