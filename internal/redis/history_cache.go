package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"meandu-go/internal/imtypes"
)

const historyKeyPrefix = "meandu:history:"

// HistoryCache caches the serialized message log of a room.
type HistoryCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewHistoryCache creates a cache whose entries live for ttl.
func NewHistoryCache(client *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{client: client, prefix: historyKeyPrefix, ttl: ttl}
}

func (c *HistoryCache) key(roomID string) string {
	return c.prefix + roomID
}

// Get returns the cached log. ok is false on a miss.
func (c *HistoryCache) Get(ctx context.Context, roomID string) (msgs []imtypes.RoomMessage, ok bool, err error) {
	data, err := c.client.Get(ctx, c.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("history cache get %s: %w", roomID, err)
	}
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, false, fmt.Errorf("history cache decode %s: %w", roomID, err)
	}
	return msgs, true, nil
}

// Set stores the log of a room.
func (c *HistoryCache) Set(ctx context.Context, roomID string, msgs []imtypes.RoomMessage) error {
	if msgs == nil {
		msgs = []imtypes.RoomMessage{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("history cache encode %s: %w", roomID, err)
	}
	if err := c.client.Set(ctx, c.key(roomID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("history cache set %s: %w", roomID, err)
	}
	return nil
}

// Invalidate drops the cached log of a room.
func (c *HistoryCache) Invalidate(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.key(roomID)).Err(); err != nil {
		return fmt.Errorf("history cache invalidate %s: %w", roomID, err)
	}
	return nil
}
