package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex(0)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "sale:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "sale:a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := m.Lock(ctx, "sale:b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_WaitTimeout(t *testing.T) {
	m := NewKeyedMutex(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := m.Lock(ctx, "sale:1")
	require.NoError(t, err)

	_, err = m.Lock(ctx, "sale:1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockTimeout))
	assert.True(t, shared.IsKind(err, shared.KindConflict))

	unlock()
	assert.Equal(t, 0, m.Len())
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	m := NewKeyedMutex(0)

	unlock, err := m.Lock(context.Background(), "sale:1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Lock(ctx, "sale:1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	m := NewKeyedMutex(0)
	unlock, err := m.Lock(context.Background(), "sale:1")
	require.NoError(t, err)
	unlock()
	unlock()

	again, err := m.Lock(context.Background(), "sale:1")
	require.NoError(t, err)
	again()
}
