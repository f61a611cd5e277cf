package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisIdempotencyStore_ClaimAndRelease(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, "")
	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "recovery:abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.True(t, mr.Exists(DefaultIdempotencyKeyPrefix+"recovery:abc"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultIdempotencyKeyPrefix+"recovery:abc"))

	claimed, err = store.MarkProcessed(ctx, "recovery:abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)

	processed, err := store.IsProcessed(ctx, "recovery:abc")
	require.NoError(t, err)
	assert.True(t, processed)

	require.NoError(t, store.Release(ctx, "recovery:abc"))
	processed, err = store.IsProcessed(ctx, "recovery:abc")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, "test:")
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "k", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	claimed, err := store.MarkProcessed(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	client, mr := newTestRedis(t)
	store := NewRedisIdempotencyStore(client, "")
	mr.Close()

	_, err := store.MarkProcessed(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory when redis disabled", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis with shared client", func(t *testing.T) {
		client, _ := newTestRedis(t)
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: true}, WithClient(client)).CreateStore(ctx)
		require.NoError(t, err)
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("falls back when redis unreachable", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		store, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails when fallback disabled", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		_, err := NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.Error(t, err)
	})
}
