package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()

	ctx := context.Background()

	t.Run("claims a new key", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("rejects a live claim", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = store.MarkProcessed(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("reclaims after expiry", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }

		claimed, err := store.MarkProcessed(ctx, "key-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)

		now = now.Add(2 * time.Minute)
		claimed, err = store.MarkProcessed(ctx, "key-3", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "known", time.Hour)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "known")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "key", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "key"))

	claimed, err := store.MarkProcessed(ctx, "key", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.NoError(t, store.Release(ctx, "never-claimed"))
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Size())

	now = now.Add(5 * time.Minute)
	store.sweep()
	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
