package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
)

// claim is a remembered key and when it is forgotten
type claim struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore remembers Idempotency-Keys in process memory.
// Keys are not shared between instances; use RedisIdempotencyStore when
// more than one server takes recoveries.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	claims    map[string]claim
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store that sweeps expired keys every sweepInterval
func NewInMemoryIdempotencyStore(sweepInterval time.Duration) *InMemoryIdempotencyStore {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	store := &InMemoryIdempotencyStore{
		claims:   make(map[string]claim),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop(sweepInterval)

	return store
}

// MarkProcessed claims key for ttl. It returns false while an earlier claim is live.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.expiresAt) {
		return false, nil
	}
	s.claims[key] = claim{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed reports whether key holds a live claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[key]
	return ok && s.now().Before(c.expiresAt), nil
}

// Release drops a claim so the same key can be used again
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, key)
		}
	}
}

// Size returns the number of remembered keys, expired ones included until swept
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
