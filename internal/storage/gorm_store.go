package storage

import (
	"context"
	"errors"
	"time"

	"duochat/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GormStore keeps messages in a relational database through GORM.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Create(ctx context.Context, msg *models.Message) error {
	msg.EnsureIdentity(time.Now())
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		logrus.WithFields(logrus.Fields{
			"function":   "GormStore.Create",
			"message_id": msg.ID,
		}).WithError(err).Error("Failed to save message")
		return err
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, msg *models.Message) error {
	updates := map[string]interface{}{"content": msg.Content}
	if msg.ReadStatus {
		updates["read_status"] = true
	}

	result := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *GormStore) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userA, userB, userB, userA).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "GormStore.Conversation",
			"user_a":   userA,
			"user_b":   userB,
		}).WithError(err).Error("Failed to load conversation")
		return nil, err
	}
	return messages, nil
}

func (s *GormStore) ReceivedSince(ctx context.Context, recipientID string, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	err := s.DB.WithContext(ctx).
		Where("recipient_id = ? AND created_at > ?", recipientID, since).
		Order("created_at asc").
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) UnreadCounts(ctx context.Context, recipientID string) ([]models.UnreadCount, error) {
	var counts []models.UnreadCount
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, count(*) as count").
		Where("recipient_id = ? AND read_status = ?", recipientID, false).
		Group("sender_id").
		Order("sender_id").
		Scan(&counts).Error
	return counts, err
}

func (s *GormStore) MarkRead(ctx context.Context, senderID, recipientID string) (int64, error) {
	result := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_status = ?", senderID, recipientID, false).
		Update("read_status", true)
	return result.RowsAffected, result.Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
