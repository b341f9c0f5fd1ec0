package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

func TestCacheKey(t *testing.T) {
	a := domain.AIExtractionRequest{DeidentifiedText: "G2P2"}
	b := domain.AIExtractionRequest{DeidentifiedText: "G2P2"}
	c := domain.AIExtractionRequest{DeidentifiedText: "G2P2", UserProvidedContext: &domain.UserProvidedContext{Age: domain.IntPtr(30)}}

	assert.Equal(t, CacheKey(a), CacheKey(b))
	assert.NotEqual(t, CacheKey(a), CacheKey(c))
	assert.Regexp(t, `^gc:extract:[0-9a-f]{64}$`, CacheKey(a))
}

func TestResponseCache_MemoryTier(t *testing.T) {
	cache, err := NewResponseCache(domain.CacheConfig{MemorySize: 2})
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "a", []byte(`{"n":1}`), 0))
	data, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":1}`, string(data))
}

func TestResponseCache_Eviction(t *testing.T) {
	cache, err := NewResponseCache(domain.CacheConfig{MemorySize: 2})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte(`1`), 0))
	require.NoError(t, cache.Set(ctx, "b", []byte(`2`), 0))
	require.NoError(t, cache.Set(ctx, "c", []byte(`3`), 0))

	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, cache.Len())
}

func TestResponseCache_Expiry(t *testing.T) {
	cache, err := NewResponseCache(domain.CacheConfig{MemorySize: 4})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", []byte(`1`), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, ok, err := cache.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestNewResponseCache_InvalidRedisURL(t *testing.T) {
	_, err := NewResponseCache(domain.CacheConfig{RedisURL: "not-a-redis-url"})
	assert.Error(t, err)
}
