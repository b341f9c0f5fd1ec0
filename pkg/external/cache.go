package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gc-eligibility-server/internal/domain"
)

const (
	defaultMemoryCacheSize = 512
	defaultCacheTTL        = 24 * time.Hour
	cacheKeyPrefix         = "gc:extract:"
)

// CachedResponse represents a cached extraction response with metadata
type CachedResponse struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (c CachedResponse) expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ResponseCache is a two-tier cache for extraction service responses: an
// in-process LRU in front of an optional Redis instance.
type ResponseCache struct {
	memory     *lru.Cache[string, CachedResponse]
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewResponseCache creates the cache. The Redis tier is enabled only when a
// URL is configured and must answer a ping.
func NewResponseCache(config domain.CacheConfig) (*ResponseCache, error) {
	size := config.MemorySize
	if size <= 0 {
		size = defaultMemoryCacheSize
	}
	memory, err := lru.New[string, CachedResponse](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache := &ResponseCache{memory: memory, defaultTTL: ttl}

	if config.RedisURL == "" {
		return cache, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache.redis = client
	return cache, nil
}

// CacheKey derives the cache key for an extraction request. Requests are
// already de-identified, so the key never hashes raw candidate text.
func CacheKey(req domain.AIExtractionRequest) string {
	payload, _ := json.Marshal(req)
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached payload for key. Redis hits are promoted into the
// memory tier.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := time.Now()
	if cached, ok := c.memory.Get(key); ok {
		if !cached.expired(now) {
			return cached.Data, true, nil
		}
		c.memory.Remove(key)
	}

	if c.redis == nil {
		return nil, false, nil
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}

	var cached CachedResponse
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if cached.expired(now) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	c.memory.Add(key, cached)
	return cached.Data, true, nil
}

// Set stores data under key in both tiers. A zero ttl uses the default.
func (c *ResponseCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	cached := CachedResponse{
		Data:      append(json.RawMessage(nil), data...),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.memory.Add(key, cached)

	if c.redis == nil {
		return nil
	}
	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}
	return c.redis.Set(ctx, key, jsonData, ttl).Err()
}

// Len returns the number of entries in the memory tier.
func (c *ResponseCache) Len() int {
	return c.memory.Len()
}

// Close releases the Redis connection pool, if any.
func (c *ResponseCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
