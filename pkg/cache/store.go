package cache

import (
	"context"
	"errors"
	"time"

	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// DefaultTTL is the default freshness window for cache entries.
const DefaultTTL = 5 * time.Minute

// ErrCacheMiss indicates the requested key is absent or its entry has gone
// stale.
var ErrCacheMiss = errors.New("cache miss")

// Entry is one cached aggregation result: the complete materialized item
// list for its query, never a partial page.
type Entry struct {
	Items    []upstream.Item `json:"items"`
	CachedAt time.Time       `json:"cachedAt"`
}

// Store persists aggregated item lists per tenant with a TTL.
type Store interface {
	// Get returns the entry for key if present and fresh, ErrCacheMiss
	// otherwise.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set replaces the entry for key with the given items.
	Set(ctx context.Context, key Key, items []upstream.Item) error

	// Purge deletes every entry belonging to tenant, leaving entries of
	// other tenants untouched.
	Purge(ctx context.Context, tenant string) error
}
