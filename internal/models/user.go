package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the slice of the identity/friend-graph record this server reads.
// Users are created and befriended by external services.
type User struct {
	ID       string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username string         `gorm:"uniqueIndex;type:varchar(120)" json:"username"`
	Friends  pq.StringArray `gorm:"type:text[]" json:"friends"`
}

// BeforeCreate is a GORM hook that generates a UUID when ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// IsFriendOf reports whether other is on the user's friend list.
func (u *User) IsFriendOf(other string) bool {
	for _, id := range u.Friends {
		if id == other {
			return true
		}
	}
	return false
}
