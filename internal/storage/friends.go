package storage

import (
	"context"
	"errors"

	"duochat/backend/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// FriendStore reads the friend graph maintained by the user service.
type FriendStore struct {
	DB *gorm.DB
}

func NewFriendStore(db *gorm.DB) *FriendStore {
	return &FriendStore{DB: db}
}

// AreFriends reports whether userID has counterpartID on its friend list.
// It returns ErrSenderNotFound when userID does not exist and
// ErrUserNotFound when counterpartID does not.
func (s *FriendStore) AreFriends(ctx context.Context, userID, counterpartID string) (bool, error) {
	user, err := s.user(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return false, ErrSenderNotFound
	}
	if err != nil {
		return false, err
	}
	if _, err := s.user(ctx, counterpartID); err != nil {
		return false, err
	}
	return user.IsFriendOf(counterpartID), nil
}

// Usernames maps each known id to its username. Unknown ids are absent from the result.
func (s *FriendStore) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	var users []models.User
	err := s.DB.WithContext(ctx).
		Select("id", "username").
		Where("id IN ?", lo.Uniq(ids)).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return lo.SliceToMap(users, func(u models.User) (string, string) {
		return u.ID, u.Username
	}), nil
}

func (s *FriendStore) user(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Befriend makes the two users friends of each other, creating either user
// when it does not exist yet.
func (s *FriendStore) Befriend(ctx context.Context, userID, counterpartID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pair := range [][2]string{{userID, counterpartID}, {counterpartID, userID}} {
			var user models.User
			err := tx.Where("id = ?", pair[0]).First(&user).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				user = models.User{ID: pair[0], Username: pair[0]}
			case err != nil:
				return err
			case user.IsFriendOf(pair[1]):
				continue
			}
			user.Friends = append(user.Friends, pair[1])
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
