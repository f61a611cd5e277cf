// Package lock provides the per-key serialization used for sale writes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
)

// ErrLockTimeout is returned when a key stays held past the wait limit
var ErrLockTimeout = errors.New("lock wait timed out")

// KeyedMutex serializes callers per key within one process.
// Entries are reference counted and removed when the last holder or waiter leaves.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
	wait    time.Duration
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates a KeyedMutex. A zero wait means callers wait until their context ends.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*keyedEntry),
		wait:    wait,
	}
}

// Lock blocks until key is free, then returns its unlock function
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	waitCtx := ctx
	if m.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-waitCtx.Done():
		m.release(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, shared.NewConflictError(fmt.Sprintf("%s is busy, please retry", key), ErrLockTimeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys currently held or waited on
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
