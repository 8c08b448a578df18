// Package redisx is the optional Redis-backed answer cache.
package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace prefixes every key written by this service
const Namespace = "expert_consult"

var ErrCacheMiss = errors.New("cache miss")

// Options describes how to reach Redis
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect creates a Redis client and verifies it with a ping
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	slog.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return client, nil
}

// Cache stores JSON values with a fixed TTL
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get decodes the value stored at key into dest.
// A missing key is reported as ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cached value %s: %w", key, err)
	}
	return nil
}

// Set stores value at key for the cache TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping is used by the health endpoints
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GenerateKey returns "<namespace>:<kind>:<sha256 of parts>".
// Parts are NUL-joined so ("ab","c") and ("a","bc") differ; question text
// never appears in a key.
func (c *Cache) GenerateKey(kind string, parts ...string) string {
	return GenerateKey(kind, parts...)
}

// GenerateKey is the package-level form of Cache.GenerateKey
func GenerateKey(kind string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return Namespace + ":" + kind + ":" + hex.EncodeToString(sum[:])
}
