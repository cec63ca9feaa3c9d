package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOptions parameterise the Redis-backed cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis implements Cache on top of a go-redis client. Every failure is
// swallowed and logged at debug level; callers observe only misses.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis builds the Redis cache and verifies connectivity.
func NewRedis(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &Redis{
		client: client,
		logger: logger.With().Str("component", "cache_redis").Logger(),
	}, nil
}

// Close releases the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return "", false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (r *Redis) DeleteByPattern(ctx context.Context, patterns ...string) {
	for _, pattern := range patterns {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
		keys := make([]string, 0)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			r.logger.Debug().Err(err).Str("pattern", pattern).Msg("cache scan failed")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.logger.Debug().Err(err).Str("pattern", pattern).Msg("cache delete failed")
		}
	}
}

var _ Cache = (*Redis)(nil)
