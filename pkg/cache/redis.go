// Package cache provides a thin Redis wrapper used as a best-effort dedupe
// layer in front of the database bank-reference lookup.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	return result > 0, err
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

const processedKeyPrefix = "recon:banktx:"

// processedTTL bounds memory growth; the database remains the source of truth
// for dedupe, the cache only short-circuits repeat lookups between runs.
const processedTTL = 7 * 24 * time.Hour

// MarkProcessed records a settled bank transaction id.
func (c *RedisCache) MarkProcessed(ctx context.Context, bankTxID string) error {
	return c.Set(ctx, processedKeyPrefix+bankTxID, true, processedTTL)
}

// WasProcessed reports whether a bank transaction id was recently settled.
func (c *RedisCache) WasProcessed(ctx context.Context, bankTxID string) (bool, error) {
	return c.Exists(ctx, processedKeyPrefix+bankTxID)
}
