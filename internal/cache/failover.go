package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverCoordinator prefers a primary coordinator and degrades to a
// fallback when the primary errors, re-probing the primary after a
// minute. With a memory fallback, locks shrink to per-process scope.
type FailoverCoordinator struct {
	primary   Coordinator
	fallback  Coordinator
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCoordinator(primary, fallback Coordinator, logger *zerolog.Logger) *FailoverCoordinator {
	return &FailoverCoordinator{primary: primary, fallback: fallback, logger: logger}
}

func (f *FailoverCoordinator) markDown(err error) {
	f.logger.Error().Err(err).Msg("Primary coordinator failed, falling back to memory")
	f.isDown.Store(true)
	f.lastCheck.Store(time.Now().UnixNano())
}

func (f *FailoverCoordinator) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	// Probe recovery at most once a minute.
	last := time.Unix(0, f.lastCheck.Load())
	if time.Since(last) > time.Minute {
		f.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (f *FailoverCoordinator) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.usePrimary() {
		if err := f.primary.SetJSON(ctx, key, value, ttl); err == nil {
			f.isDown.Store(false)
			return nil
		} else {
			f.markDown(err)
		}
	}
	return f.fallback.SetJSON(ctx, key, value, ttl)
}

func (f *FailoverCoordinator) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.GetJSON(ctx, key, out)
		if err == nil {
			f.isDown.Store(false)
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.GetJSON(ctx, key, out)
}

func (f *FailoverCoordinator) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.SetNX(ctx, key, value, ttl)
		if err == nil {
			f.isDown.Store(false)
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.SetNX(ctx, key, value, ttl)
}

func (f *FailoverCoordinator) Get(ctx context.Context, key string) (string, bool, error) {
	if f.usePrimary() {
		val, ok, err := f.primary.Get(ctx, key)
		if err == nil {
			f.isDown.Store(false)
			return val, ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Get(ctx, key)
}

func (f *FailoverCoordinator) Del(ctx context.Context, key string) error {
	if f.usePrimary() {
		if err := f.primary.Del(ctx, key); err == nil {
			f.isDown.Store(false)
			return nil
		} else {
			f.markDown(err)
		}
	}
	return f.fallback.Del(ctx, key)
}
