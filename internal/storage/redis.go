package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"duochat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	bridgeChannel = "duochat:events"
	roomKeyPrefix = "duochat:room:"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return rdb, nil
}

// RoomDirectory mirrors conversation-room membership in Redis so any process
// can ask whether a user has a connection joined to a room.
// Each room is a hash of user id -> number of joined connections.
type RoomDirectory struct {
	Redis *redis.Client
}

func NewRoomDirectory(rdb *redis.Client) *RoomDirectory {
	return &RoomDirectory{Redis: rdb}
}

func roomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

func (d *RoomDirectory) Join(ctx context.Context, roomID, userID string) error {
	return d.Redis.HIncrBy(ctx, roomKey(roomID), userID, 1).Err()
}

// Leave decrements the user's connection count and drops the field at zero.
// TODO: counts of a crashed process are never decremented; key them per instance with a TTL heartbeat.
func (d *RoomDirectory) Leave(ctx context.Context, roomID, userID string) error {
	n, err := d.Redis.HIncrBy(ctx, roomKey(roomID), userID, -1).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return d.Redis.HDel(ctx, roomKey(roomID), userID).Err()
	}
	return nil
}

func (d *RoomDirectory) Joined(ctx context.Context, roomID, userID string) (bool, error) {
	n, err := d.Redis.HGet(ctx, roomKey(roomID), userID).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BridgeMessage is one room emit travelling between server processes.
type BridgeMessage struct {
	Origin string       `json:"origin"`
	Room   string       `json:"room"`
	Event  models.Event `json:"event"`
}

// Bridge fans room emits out to every other server process over Redis Pub/Sub.
type Bridge struct {
	Redis      *redis.Client
	InstanceID string
}

// NewBridge creates a bridge with a random instance id.
func NewBridge(rdb *redis.Client) *Bridge {
	return &Bridge{Redis: rdb, InstanceID: uuid.NewString()}
}

// Publish sends the event addressed to room to the other processes.
func (b *Bridge) Publish(ctx context.Context, room string, ev models.Event) error {
	payload, err := EncodeBridgeMessage(BridgeMessage{Origin: b.InstanceID, Room: room, Event: ev})
	if err != nil {
		return err
	}
	return b.Redis.Publish(ctx, bridgeChannel, payload).Err()
}

// Subscribe delivers messages published by other processes until ctx is done.
// Messages published by this process are filtered out.
func (b *Bridge) Subscribe(ctx context.Context) <-chan BridgeMessage {
	out := make(chan BridgeMessage, 64)
	pubsub := b.Redis.Subscribe(ctx, bridgeChannel)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				bm, err := DecodeBridgeMessage([]byte(msg.Payload))
				if err != nil {
					logrus.WithField("function", "Bridge.Subscribe").WithError(err).Warn("Error unmarshalling Redis message")
					continue
				}
				if bm.Origin == b.InstanceID {
					continue
				}
				select {
				case out <- bm:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func EncodeBridgeMessage(bm BridgeMessage) (string, error) {
	raw, err := json.Marshal(bm)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeBridgeMessage(raw []byte) (BridgeMessage, error) {
	var bm BridgeMessage
	if err := json.Unmarshal(raw, &bm); err != nil {
		return BridgeMessage{}, err
	}
	if bm.Room == "" || bm.Event.Name == "" {
		return BridgeMessage{}, fmt.Errorf("incomplete bridge message")
	}
	return bm, nil
}
