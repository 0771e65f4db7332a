package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache implements domain.Cache with SET NX EX
type Cache struct {
	client redis.UniversalClient
	prefix string
}

func NewCache(client redis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+"cache:"+key, 1, ttl).Result()
}
