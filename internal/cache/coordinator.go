package cache

import (
	"context"
	"time"
)

// LockSuffix marks lock keys; stripping it yields the key under which a
// previous holder may have cached its result.
const LockSuffix = ":lock"

// Coordinator is the shared key-value store crossing worker boundaries.
// Implementations must make SetNX atomic; everything else is best-effort.
type Coordinator interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetJSON reports false when the key is absent or expired.
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	// SetNX stores value under key only if the key is absent.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
}
