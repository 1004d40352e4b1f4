// Package cache holds the per-user complaint statistics cache. The Redis
// implementation is used when REDIS_ADDR is configured; otherwise callers get
// Noop and every read misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// StatsCache stores aggregate complaint counts per user.
type StatsCache interface {
	// Get returns the cached stats and true on a hit.
	Get(ctx context.Context, userID string) (domain.Stats, bool, error)
	Set(ctx context.Context, userID string, s domain.Stats) error
	Invalidate(ctx context.Context, userID string) error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (domain.Stats, bool, error) {
	return domain.Stats{}, false, nil
}
func (Noop) Set(context.Context, string, domain.Stats) error { return nil }
func (Noop) Invalidate(context.Context, string) error        { return nil }

// Redis is a StatsCache backed by go-redis. Entries are JSON values under
// "<prefix>stats:<userID>" with a fixed TTL.
type Redis struct {
	Client redis.UniversalClient
	TTL    time.Duration
	Prefix string
}

// NewRedisClient builds a client from cfg. It does not dial; use Ping to
// check connectivity.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedis wraps client as a StatsCache.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl, Prefix: "complaint-desk:"}
}

func (r *Redis) key(userID string) string { return r.Prefix + "stats:" + userID }

// Get implements StatsCache.
func (r *Redis) Get(ctx context.Context, userID string) (domain.Stats, bool, error) {
	raw, err := r.Client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Stats{}, false, nil
	}
	if err != nil {
		return domain.Stats{}, false, err
	}
	var s domain.Stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Stats{}, false, err
	}
	return s, true, nil
}

// Set implements StatsCache.
func (r *Redis) Set(ctx context.Context, userID string, s domain.Stats) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, r.key(userID), raw, r.TTL).Err()
}

// Invalidate implements StatsCache.
func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	return r.Client.Del(ctx, r.key(userID)).Err()
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
