package cache

import (
	"context"
	"sync"
	"time"

	"github.com/OU-Studio/summary-access/pkg/upstream"
)

type memoryEntry struct {
	tenant   string
	items    []upstream.Item
	cachedAt time.Time
}

// MemoryStore is a mutex-guarded in-process store, used by tests and by
// embedders that do not want disk or Redis I/O.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry

	now func() time.Time
}

// NewMemoryStore creates an in-memory store. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the entry for key if present and fresh.
func (s *MemoryStore) Get(ctx context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key.Hash()]
	s.mu.RUnlock()

	if !ok || s.now().Sub(entry.cachedAt) >= s.ttl {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	// Copy so callers cannot mutate the cached list in place.
	items := make([]upstream.Item, len(entry.items))
	copy(items, entry.items)

	cacheHits.WithLabelValues("memory").Inc()
	return &Entry{Items: items, CachedAt: entry.cachedAt}, nil
}

// Set replaces the entry for key.
func (s *MemoryStore) Set(ctx context.Context, key Key, items []upstream.Item) error {
	stored := make([]upstream.Item, len(items))
	copy(stored, items)

	s.mu.Lock()
	s.entries[key.Hash()] = memoryEntry{
		tenant:   key.Tenant(),
		items:    stored,
		cachedAt: s.now(),
	}
	s.mu.Unlock()

	return nil
}

// Purge deletes every entry belonging to tenant.
func (s *MemoryStore) Purge(ctx context.Context, tenant string) error {
	t := NormalizeDomain(tenant)

	s.mu.Lock()
	for hash, entry := range s.entries {
		if entry.tenant == t {
			delete(s.entries, hash)
		}
	}
	s.mu.Unlock()

	return nil
}

// Len reports the number of live entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
