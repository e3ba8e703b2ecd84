package sessioncache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryCache is the single-process cache used when Redis is disabled.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *MemoryCache) Save(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error {
	return m.put(userID, deviceID, entry, ttl, false)
}

func (m *MemoryCache) Replace(ctx context.Context, userID, deviceID string, entry Entry, ttl time.Duration) error {
	return m.put(userID, deviceID, entry, ttl, true)
}

func (m *MemoryCache) put(userID, deviceID string, entry Entry, ttl time.Duration, force bool) error {
	now := m.now()
	item := memoryItem{entry: entry}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	key := Key(userID, deviceID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.items[key]; ok && !force && !entry.IsLoggedOut &&
		current.entry.IsLoggedOut && !current.expired(now) {
		return ErrRevoked
	}
	m.items[key] = item
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, userID, deviceID string) (*Entry, error) {
	key := Key(userID, deviceID)

	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}

	if item.expired(m.now()) {
		m.mu.Lock()
		// A Save may have landed since the read lock was released.
		if current, ok := m.items[key]; ok && current.expired(m.now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, ErrMiss
	}

	entry := item.entry
	return &entry, nil
}

func (m *MemoryCache) Delete(ctx context.Context, userID, deviceID string) error {
	m.mu.Lock()
	delete(m.items, Key(userID, deviceID))
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) DeleteAll(ctx context.Context, userID string) (int, error) {
	prefix := strings.TrimSuffix(userPattern(userID), "*")

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			deleted++
		}
	}
	return deleted, nil
}
