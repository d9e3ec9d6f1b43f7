// Package room maps participants to broadcast room identifiers.
package room

import (
	"encoding/hex"
	"strings"
)

const (
	conversationPrefix = "conversation:"
	separator          = "-"
	inboxPrefix        = "user:"
)

// For returns the conversation room shared by a and b. The identifiers are
// sorted so For(a, b) == For(b, a), and hex encoded so an identifier that
// contains the separator cannot collide with another pair.
func For(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return conversationPrefix + hex.EncodeToString([]byte(a)) + separator + hex.EncodeToString([]byte(b))
}

// Inbox returns the personal inbox room of a user. Every live connection of
// the user is subscribed to it.
func Inbox(userID string) string {
	return inboxPrefix + userID
}

// IsConversation reports whether id was produced by For.
func IsConversation(id string) bool {
	return strings.HasPrefix(id, conversationPrefix)
}
