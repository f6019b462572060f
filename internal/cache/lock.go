package cache

import (
	"context"
	"strings"
	"time"

	"metricsync/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WithLock runs task under a best-effort distributed lock.
//
// On acquisition the lock holds a random ownership token with the given
// TTL; after task returns the lock is deleted only if it still carries
// this attempt's token, so a late release never clobbers a holder that
// acquired after TTL expiry. On contention the caller waits, then
// prefers a result the previous holder cached under the lock key minus
// its suffix; if none is there it runs task anyway. Liveness over
// strict exclusion: rare double execution is tolerated, deadlock is not.
func WithLock[T any](
	ctx context.Context,
	c Coordinator,
	logger *zerolog.Logger,
	lockKey string,
	ttl, wait time.Duration,
	task func(context.Context) (T, error),
) (T, error) {
	var zero T
	token := uuid.NewString()

	acquired, err := c.SetNX(ctx, lockKey, token, ttl)
	if err != nil {
		logger.Warn().Err(err).Str("lock_key", lockKey).Msg("lock attempt failed, running unlocked")
		return task(ctx)
	}

	if acquired {
		metrics.IncLockAttempt("acquired")
		defer releaseLock(ctx, c, logger, lockKey, token)
		return task(ctx)
	}

	metrics.IncLockAttempt("contended")
	logger.Debug().Str("lock_key", lockKey).Dur("wait", wait).Msg("lock held elsewhere, waiting for cached result")

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	resultKey := strings.TrimSuffix(lockKey, LockSuffix)
	var cached T
	if ok, err := c.GetJSON(ctx, resultKey, &cached); err == nil && ok {
		return cached, nil
	}

	// No cached result after the wait; proceed rather than deadlock.
	logger.Debug().Str("lock_key", lockKey).Msg("no cached result, proceeding without lock")
	return task(ctx)
}

func releaseLock(ctx context.Context, c Coordinator, logger *zerolog.Logger, lockKey, token string) {
	val, ok, err := c.Get(ctx, lockKey)
	if err != nil {
		logger.Warn().Err(err).Str("lock_key", lockKey).Msg("lock release read failed")
		return
	}
	if !ok || val != token {
		// Lock expired and was re-acquired by someone else; leave it.
		return
	}
	if err := c.Del(ctx, lockKey); err != nil {
		logger.Warn().Err(err).Str("lock_key", lockKey).Msg("lock release failed")
	}
}
