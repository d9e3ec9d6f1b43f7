package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"duochat/backend/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// BadgerStore keeps messages in an embedded BadgerDB.
//
// Records live under "msg:{id}". Two index families point back at them:
//
//	pair:{lowUser}:{highUser}:{createdAtNanos}:{id}   conversation lookups
//	rcpt:{recipient}:{createdAtNanos}:{id}            inbox lookups
//
// User ids are hex encoded inside keys and timestamps are zero padded to 19
// digits, so a prefix scan returns records in creation order.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store at path. An empty path opens an in-memory store.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func messageKey(id string) []byte {
	return []byte("msg:" + id)
}

func pairPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("pair:%s:%s:", hex.EncodeToString([]byte(a)), hex.EncodeToString([]byte(b)))
}

func recipientPrefix(recipientID string) string {
	return fmt.Sprintf("rcpt:%s:", hex.EncodeToString([]byte(recipientID)))
}

func indexKey(prefix string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefix, at.UnixNano(), id))
}

func (s *BadgerStore) Create(ctx context.Context, msg *models.Message) error {
	msg.EnsureIdentity(time.Now())
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(messageKey(msg.ID)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id := []byte(msg.ID)
		if err := txn.Set(messageKey(msg.ID), value); err != nil {
			return err
		}
		if err := txn.Set(indexKey(pairPrefix(msg.SenderID, msg.RecipientID), msg.CreatedAt, msg.ID), id); err != nil {
			return err
		}
		return txn.Set(indexKey(recipientPrefix(msg.RecipientID), msg.CreatedAt, msg.ID), id)
	})
}

func (s *BadgerStore) Update(ctx context.Context, msg *models.Message) error {
	return s.db.Update(func(txn *badger.Txn) error {
		stored, err := getMessage(txn, msg.ID)
		if err != nil {
			return err
		}
		stored.Content = msg.Content
		if msg.ReadStatus {
			stored.ReadStatus = true
		}
		return putMessage(txn, stored)
	})
}

func (s *BadgerStore) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg *models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		msg, err = getMessage(txn, id)
		return err
	})
	return msg, err
}

func (s *BadgerStore) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		messages, err = scanIndex(txn, pairPrefix(userA, userB), nil)
		return err
	})
	return messages, err
}

func (s *BadgerStore) ReceivedSince(ctx context.Context, recipientID string, since time.Time) ([]models.Message, error) {
	prefix := recipientPrefix(recipientID)
	seek := []byte(fmt.Sprintf("%s%019d", prefix, since.UnixNano()+1))

	var messages []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		messages, err = scanIndex(txn, prefix, seek)
		return err
	})
	return messages, err
}

func (s *BadgerStore) UnreadCounts(ctx context.Context, recipientID string) ([]models.UnreadCount, error) {
	var inbox []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		inbox, err = scanIndex(txn, recipientPrefix(recipientID), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	unread := lo.Filter(inbox, func(m models.Message, _ int) bool { return !m.ReadStatus })
	bySender := lo.CountValuesBy(unread, func(m models.Message) string { return m.SenderID })

	counts := lo.MapToSlice(bySender, func(sender string, n int) models.UnreadCount {
		return models.UnreadCount{SenderID: sender, Count: int64(n)}
	})
	sort.Slice(counts, func(i, j int) bool { return counts[i].SenderID < counts[j].SenderID })
	return counts, nil
}

func (s *BadgerStore) MarkRead(ctx context.Context, senderID, recipientID string) (int64, error) {
	var changed int64
	err := s.db.Update(func(txn *badger.Txn) error {
		conversation, err := scanIndex(txn, pairPrefix(senderID, recipientID), nil)
		if err != nil {
			return err
		}
		for _, m := range conversation {
			if m.SenderID != senderID || m.RecipientID != recipientID || m.ReadStatus {
				continue
			}
			m.ReadStatus = true
			if err := putMessage(txn, &m); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *BadgerStore) Close() error {
	logrus.WithField("function", "BadgerStore.Close").Info("Closing BadgerDB...")
	return s.db.Close()
}

func getMessage(txn *badger.Txn, id string) (*models.Message, error) {
	item, err := txn.Get(messageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var msg models.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func putMessage(txn *badger.Txn, msg *models.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return txn.Set(messageKey(msg.ID), value)
}

// scanIndex walks an index prefix (from seek when given) and loads the
// referenced records in key order.
func scanIndex(txn *badger.Txn, prefix string, seek []byte) ([]models.Message, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	if seek == nil {
		seek = []byte(prefix)
	}

	var ids []string
	for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		ids = append(ids, string(id))
	}

	messages := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := getMessage(txn, id)
		if errors.Is(err, ErrNotFound) {
			logrus.WithFields(logrus.Fields{
				"function":   "scanIndex",
				"message_id": id,
			}).Warn("Index points at a missing message, skipping")
			continue
		}
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}
