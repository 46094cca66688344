package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Memory is a process-local TTL cache for hot provider lookups (quotes,
// news pages) where a Redis round trip is not worth it.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
}

// NewMemory creates a memory cache with the specified TTL
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
	}
}

// Get retrieves a value if present and not expired
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.items[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with the cache's TTL
func (m *Memory) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// SetWithTTL stores a value with an explicit TTL
func (m *Memory) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Clear removes all entries
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]memoryEntry)
}

// CleanupExpired removes expired entries
func (m *Memory) CleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.items {
		if now.After(entry.expiresAt) {
			delete(m.items, key)
		}
	}
}
