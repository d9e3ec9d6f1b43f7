package chathub

import "errors"

var (
	ErrMalformedFrame  = errors.New("malformed event frame")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrNotFriends      = errors.New("you can only message your friends")
	ErrUnknownUser     = errors.New("recipient not found")
	ErrUnknownSender   = errors.New("your account was not found")
	ErrSendUnavailable = errors.New("failed to send message")
)
