package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache is the best-effort key/value collaborator shared by the rate gate,
// the token cache, and the rate-snapshot cache. Implementations never surface
// errors: any backend failure degrades to a miss on reads and a no-op on
// writes, so a broken cache can never block the pipeline.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	DeleteByPattern(ctx context.Context, patterns ...string)
}

// Memory is an in-process Cache with an injectable clock. It backs tests and
// deployments without Redis.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory constructs an in-memory cache. A nil clock defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]memoryEntry), now: now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return entry.value, true
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
}

func (m *Memory) DeleteByPattern(_ context.Context, patterns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pattern := range patterns {
		prefix := strings.TrimSuffix(pattern, "*")
		for key := range m.entries {
			if pattern == key || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
				delete(m.entries, key)
			}
		}
	}
}

var _ Cache = (*Memory)(nil)
