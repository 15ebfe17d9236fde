// Package security tracks refresh token reuse across instances so bursts of
// replay against one account stand out.
package security

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/authsvc/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultWindow    = 15 * time.Minute
	DefaultThreshold = 3

	// EventReuseBurst is logged when a user crosses the threshold.
	EventReuseBurst = "refresh_token_reuse_burst"
)

// ReuseTracker counts reuse detections per user inside a fixed window that
// opens on the first detection.
type ReuseTracker interface {
	// Record notes one detection and returns the count in the current window.
	Record(ctx context.Context, userID int64) (int64, error)
}

// Noop is used when no Redis is configured. It always reports zero.
type Noop struct{}

func (Noop) Record(context.Context, int64) (int64, error) { return 0, nil }

// RedisTracker keeps one counter per user that expires Window after the
// first hit.
type RedisTracker struct {
	redis     *redis.Client
	prefix    string
	window    time.Duration
	threshold int64
}

type RedisTrackerConfig struct {
	KeyPrefix string
	Window    time.Duration
	Threshold int64
}

func NewRedisTracker(client *redis.Client, cfg RedisTrackerConfig) *RedisTracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "authsvc:reuse:"
	}
	return &RedisTracker{
		redis:     client,
		prefix:    cfg.KeyPrefix,
		window:    cfg.Window,
		threshold: cfg.Threshold,
	}
}

func (t *RedisTracker) key(userID int64) string {
	return t.prefix + strconv.FormatInt(userID, 10)
}

// Ping checks the Redis connection for readiness probes.
func (t *RedisTracker) Ping(ctx context.Context) error {
	return t.redis.Ping(ctx).Err()
}

// Record increments the user's counter and arms its expiry in one MULTI, so
// a counter never outlives the window. EXPIRE NX also heals a counter left
// without a TTL.
func (t *RedisTracker) Record(ctx context.Context, userID int64) (int64, error) {
	key := t.key(userID)

	var incr *redis.IntCmd
	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, t.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("security: record reuse: %w", err)
	}
	count := incr.Val()
	if count >= t.threshold {
		slogx.Security(ctx, EventReuseBurst,
			"user_id", userID,
			"count", count,
			"window", t.window.String(),
		)
	}
	return count, nil
}
