package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCoordinator is a per-process coordinator used in tests and as
// the failover fallback. Locks taken here only exclude within the
// process, which the liveness-first lock protocol already tolerates.
type MemoryCoordinator struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{entries: make(map[string]memoryEntry)}
}

func (m *MemoryCoordinator) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.set(key, string(data), ttl)
	return nil
}

func (m *MemoryCoordinator) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	val, ok := m.get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryCoordinator) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(time.Now()) {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

func (m *MemoryCoordinator) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok := m.get(key)
	return val, ok, nil
}

func (m *MemoryCoordinator) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCoordinator) set(key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
}

func (m *MemoryCoordinator) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
