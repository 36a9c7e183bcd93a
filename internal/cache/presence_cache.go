package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceCache tracks which players currently hold a live connection.
type PresenceCache interface {
	Touch(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type presenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceCache creates a presence cache with a heartbeat TTL.
func NewPresenceCache(client *redis.Client) PresenceCache {
	return &presenceCache{
		client: client,
		ttl:    90 * time.Second,
	}
}

func (c *presenceCache) key(userID string) string {
	return fmt.Sprintf("presence:%s", userID)
}

func (c *presenceCache) Touch(ctx context.Context, userID string) error {
	return c.client.Set(ctx, c.key(userID), "1", c.ttl).Err()
}

func (c *presenceCache) Clear(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *presenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(userID)).Result()
	return n > 0, err
}
