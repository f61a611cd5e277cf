package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes callers per key across processes sharing one Redis.
//
// A lock that outlives its TTL is lost silently; the version check on the
// sale row still rejects the late writer.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	wait      time.Duration
	poll      time.Duration
	logger    *zap.Logger
}

// RedisLockerOption configures a RedisLocker
type RedisLockerOption func(*RedisLocker)

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.keyPrefix = prefix
	}
}

// WithPollInterval sets how often a waiting caller retries
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder blocks a key.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:    client,
		keyPrefix: "ledger:lock:",
		ttl:       ttl,
		wait:      wait,
		poll:      25 * time.Millisecond,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ttl <= 0 {
		l.ttl = 10 * time.Second
	}
	return l
}

// Lock acquires key with SET NX PX, polling until the wait limit
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.unlock(redisKey, token) }, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, shared.NewConflictError(fmt.Sprintf("%s is busy, please retry", key), ErrLockTimeout)
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlock(redisKey, token string) {
	// The caller's context may already be done; release must still run
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("failed to release lock", zap.String("key", redisKey), zap.Error(err))
	}
}
