package security_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/authsvc/internal/auth/security"
	"github.com/aussiebroadwan/authsvc/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisTrackerCountsPerUser(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{Window: time.Minute, Threshold: 10})
	ctx := context.Background()

	n, err := tr.Record(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = tr.Record(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = tr.Record(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.Equal(t, time.Minute, mr.TTL("authsvc:reuse:1"))
}

func TestRedisTrackerWindowExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{Window: time.Minute})
	ctx := context.Background()

	_, err := tr.Record(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	n, err := tr.Record(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRedisTrackerArmsExpiryOnStaleCounter(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{Window: time.Minute, Threshold: 100})

	// A counter that lost its TTL must not count forever.
	require.NoError(t, mr.Set("authsvc:reuse:5", "4"))
	require.Zero(t, mr.TTL("authsvc:reuse:5"))

	n, err := tr.Record(context.Background(), 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.Equal(t, time.Minute, mr.TTL("authsvc:reuse:5"))

	// Later hits keep the original deadline.
	mr.FastForward(30 * time.Second)
	_, err = tr.Record(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, mr.TTL("authsvc:reuse:5"))
}

func TestRedisTrackerLogsBurst(t *testing.T) {
	_, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{Threshold: 2})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := slogx.WithContext(context.Background(), logger)

	_, err := tr.Record(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, buf.Len())

	_, err = tr.Record(ctx, 3)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, security.EventReuseBurst, rec[slogx.SecurityEventKey])
	require.Equal(t, "WARN", rec["level"])
	require.EqualValues(t, 2, rec["count"])
}

func TestRedisTrackerUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{})
	mr.Close()

	_, err := tr.Record(context.Background(), 1)
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	n, err := security.Noop{}.Record(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedisTrackerPing(t *testing.T) {
	mr, client := newTestRedis(t)
	tr := security.NewRedisTracker(client, security.RedisTrackerConfig{})

	require.NoError(t, tr.Ping(context.Background()))

	mr.Close()
	require.Error(t, tr.Ping(context.Background()))
}
