package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores issued tokens between Identity instances or processes.
// Read reports false when there is no entry for key.
type Cache interface {
	Read(ctx context.Context, key string) (Token, bool, error)
	Write(ctx context.Context, key string, token Token) error
}

// MemoryCache is a process local Cache.
type MemoryCache struct {
	mu     sync.Mutex
	tokens map[string]Token
}

// NewMemoryCache creates an empty process-local token cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: map[string]Token{}}
}

// Read returns the cached token for key, or false if there is none.
func (c *MemoryCache) Read(_ context.Context, key string) (Token, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[key]
	return t, ok, nil
}

// Write stores token under key.
func (c *MemoryCache) Write(_ context.Context, key string, token Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
	return nil
}

// RedisCache shares tokens through Redis. Entries expire together with the token.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a cache storing tokens under prefix+key in Redis.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// NewRedisCacheFromURL connects to the Redis server at rawURL (redis:// or rediss://) and
// checks that it answers.
func NewRedisCacheFromURL(ctx context.Context, rawURL, prefix string) (*RedisCache, error) {
	opts, err := redisOptions(rawURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCache(client, prefix), nil
}

func redisOptions(rawURL string) (*redis.Options, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return opts, nil
}

// Read returns the token stored under key. A missing key is not an error.
func (c *RedisCache) Read(ctx context.Context, key string) (Token, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("read cached token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	return t, true, nil
}

// Write skips tokens that are already expired.
func (c *RedisCache) Write(ctx context.Context, key string, token Token) error {
	ttl := time.Until(token.Expires)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("write cached token: %w", err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
