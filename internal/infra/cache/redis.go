package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-downloader-bot/internal/domain"
	"tg-downloader-bot/internal/infra/metrics"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SetNX задаёт значение, только если ключ ещё не существует.
func (c *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, value, ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", keyPrefix(key), start, err)
	return ok, err
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", keyPrefix(key), start, err)
	return err
}

// Get возвращает значение.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", keyPrefix(key), start, nil)
		return nil, domain.ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("redis", "get", keyPrefix(key), start, err)
	return data, err
}

// Delete удаляет ключ.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := c.client.Del(ctx, key).Err()
	metrics.ObserveNetworkRequest("redis", "del", keyPrefix(key), start, err)
	return err
}

// Incr увеличивает счётчик и продлевает его TTL в одной транзакции.
func (c *RedisCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	metrics.ObserveNetworkRequest("redis", "incr", keyPrefix(key), start, err)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Decr уменьшает счётчик, не опуская его ниже нуля.
func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	val, err := decrFloorScript.Run(ctx, c.client, []string{key}).Int64()
	metrics.ObserveNetworkRequest("redis", "decr", keyPrefix(key), start, err)
	return val, err
}

var decrFloorScript = redis.NewScript(`
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v <= 0 then
  return 0
end
return redis.call("DECR", KEYS[1])
`)

func keyPrefix(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
