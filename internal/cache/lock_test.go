package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisFixture(t *testing.T) (*miniredis.Miniredis, *RedisCoordinator) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	return s, NewRedisCoordinator(client)
}

func TestWithLockRunsTaskAndReleases(t *testing.T) {
	s, coord := newRedisFixture(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	calls := 0
	result, err := WithLock(ctx, coord, &logger, "sync:ads:2024-03-01:lock", time.Minute, time.Millisecond,
		func(ctx context.Context) (string, error) {
			calls++
			return "done", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 1, calls)

	// Lock released by its owner.
	assert.False(t, s.Exists("sync:ads:2024-03-01:lock"))
}

func TestWithLockContendedReturnsCachedResult(t *testing.T) {
	s, coord := newRedisFixture(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	// Another holder owns the lock and has already cached its result.
	require.NoError(t, s.Set("sync:ads:2024-03-01:lock", "other-token"))
	require.NoError(t, coord.SetJSON(ctx, "sync:ads:2024-03-01", "cached-value", time.Minute))

	calls := 0
	result, err := WithLock(ctx, coord, &logger, "sync:ads:2024-03-01:lock", time.Minute, time.Millisecond,
		func(ctx context.Context) (string, error) {
			calls++
			return "recomputed", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "cached-value", result)
	assert.Equal(t, 0, calls, "cached result must suppress the duplicate fetch")
}

func TestWithLockContendedNoCacheProceedsAnyway(t *testing.T) {
	s, coord := newRedisFixture(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	// Holder crashed: lock present, no cached result. Liveness wins.
	require.NoError(t, s.Set("sync:ads:2024-03-01:lock", "dead-token"))

	calls := 0
	result, err := WithLock(ctx, coord, &logger, "sync:ads:2024-03-01:lock", time.Minute, time.Millisecond,
		func(ctx context.Context) (string, error) {
			calls++
			return "recomputed", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "recomputed", result)
	assert.Equal(t, 1, calls)
}

func TestWithLockTTLExpiryAllowsReacquire(t *testing.T) {
	s, coord := newRedisFixture(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	// A crashed holder's lock self-expires via TTL.
	acquired, err := coord.SetNX(ctx, "k:lock", "dead-token", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	s.FastForward(100 * time.Millisecond)

	result, err := WithLock(ctx, coord, &logger, "k:lock", time.Minute, time.Millisecond,
		func(ctx context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", result)
}

func TestReleaseLockNonOwner(t *testing.T) {
	s, coord := newRedisFixture(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	// The lock now belongs to a holder that acquired after our TTL
	// expired; our stale token must not delete it.
	require.NoError(t, s.Set("k:lock", "new-owner"))
	releaseLock(ctx, coord, &logger, "k:lock", "stale-token")
	assert.True(t, s.Exists("k:lock"))

	val, err := s.Get("k:lock")
	require.NoError(t, err)
	assert.Equal(t, "new-owner", val)
}
