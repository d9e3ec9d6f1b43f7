package models

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// UserStatus is the presence snapshot of one user as sent to clients.
// LastActive is a unix-millisecond timestamp, nil when the user was never seen.
type UserStatus struct {
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	LastActive *int64 `json:"lastActive"`
}
