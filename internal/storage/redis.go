package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mint-engine/internal/config"
	"github.com/mint-engine/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	totalMintsKey       = "counters:total_mints"
	leaderboardKey      = "cache:leaderboard"
	leaderboardCacheTTL = 30 * time.Second
)

// RedisCache wraps the Redis client. It carries the global mint counter and
// the leaderboard cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client (used by tests with miniredis)
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ping checks if Redis is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// IncrTotalMints bumps the global mint counter by one. Callers only invoke
// this after the ledger insert actually recorded a new row, so the counter
// moves exactly once per logical mint.
func (r *RedisCache) IncrTotalMints(ctx context.Context) (int64, error) {
	return r.client.Incr(ctx, totalMintsKey).Result()
}

// GetTotalMints returns the global mint counter. A missing key reads as zero.
func (r *RedisCache) GetTotalMints(ctx context.Context) (int64, error) {
	val, err := r.client.Get(ctx, totalMintsKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// GetLeaderboard returns the cached leaderboard, or (nil, nil) on a miss.
func (r *RedisCache) GetLeaderboard(ctx context.Context) ([]types.HolderCount, error) {
	raw, err := r.client.Get(ctx, leaderboardKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []types.HolderCount
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return entries, nil
}

// SetLeaderboard caches the leaderboard with a short TTL.
func (r *RedisCache) SetLeaderboard(ctx context.Context, entries []types.HolderCount) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	return r.client.Set(ctx, leaderboardKey, raw, leaderboardCacheTTL).Err()
}

// InvalidateLeaderboard drops the cached leaderboard after new ingestion.
func (r *RedisCache) InvalidateLeaderboard(ctx context.Context) error {
	return r.client.Del(ctx, leaderboardKey).Err()
}
