// Package cache provides TTL-bounded persistence of aggregated item lists,
// keyed by normalized query and partitioned by tenant domain.
//
// Three backends implement the Store interface: a filesystem store (one
// JSON file per entry under a per-tenant directory, freshness derived from
// the file's mtime), an in-memory store for tests and embedders, and a
// Redis store that leans on Redis's native key expiry.
//
// Entries are whole-list replacements. Concurrent writers for the same key
// may race; the last completed write wins, which is safe because entries
// are idempotently regenerable from upstream.
package cache
