// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores conversion results in Redis, keyed by a digest of the
// input bytes and the conversion settings.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/label-converter/pkg/types"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "labelconv:"

// DefaultTTL applies when the configuration leaves TTL at zero.
const DefaultTTL = 24 * time.Hour

// Entry is a cached conversion result.
type Entry struct {
	PDF      []byte
	PagesIn  int
	PagesOut int
}

// Cache is a Redis-backed result cache.
type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New connects to the Redis server described by cfg. It does not dial;
// call Ping to check reachability.
func New(cfg types.CacheConfig) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.TTL)
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key returns the cache key for converting data with cfg.
func Key(data []byte, cfg types.ConversionConfig) string {
	h := sha256.New()
	h.Write(data)
	// Marshaling a struct of scalars cannot fail.
	settings, _ := json.Marshal(cfg)
	h.Write([]byte{0})
	h.Write(settings)
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Ping checks that the server answers.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Get returns the entry stored under key. A miss returns (nil, nil).
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	pdf, ok := fields["pdf"]
	if !ok {
		return nil, nil
	}

	e := &Entry{PDF: []byte(pdf)}
	if e.PagesIn, err = strconv.Atoi(fields["pages_in"]); err != nil {
		return nil, fmt.Errorf("decoding pages_in of %s: %w", key, err)
	}
	if e.PagesOut, err = strconv.Atoi(fields["pages_out"]); err != nil {
		return nil, fmt.Errorf("decoding pages_out of %s: %w", key, err)
	}
	return e, nil
}

// Set stores e under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, e Entry) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"pdf":       e.PDF,
			"pages_in":  e.PagesIn,
			"pages_out": e.PagesOut,
		})
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close releases the client's connections.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
