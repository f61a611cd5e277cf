package cache

import (
	"context"
	"fmt"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency backend from configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	client                *redis.Client
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithClient reuses an existing Redis client instead of dialing a new one
func WithClient(client *redis.Client) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.client = client
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to memory.
// Default is true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable, otherwise an in-memory one
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	}

	client := f.client
	if client == nil {
		var err error
		client, err = NewRedisClient(ctx, f.redisConfig)
		if err != nil {
			if !f.allowInMemoryFallback {
				return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
			}
			f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
				"retries that reach another instance will not be recognised",
				zap.Error(err),
			)
			return NewInMemoryIdempotencyStore(0), nil
		}
	}

	f.logger.Info("using Redis idempotency store")
	return NewRedisIdempotencyStore(client, ""), nil
}
