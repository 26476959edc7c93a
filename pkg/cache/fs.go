package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// filePayload is the on-disk shape of an entry. It matches the API response
// body, so a cached file can be served byte-for-byte.
type filePayload struct {
	Items []upstream.Item `json:"items"`
}

// FileStore persists entries as one JSON file per (tenant, query-hash)
// under a tenant-partitioned directory tree. Freshness is derived from the
// file's last-modified timestamp, so no timestamp is embedded in the file.
type FileStore struct {
	root   string
	ttl    time.Duration
	logger zerolog.Logger

	now func() time.Time
}

// NewFileStore creates a filesystem store rooted at root. Tenant
// directories are created lazily on first write. A non-positive ttl falls
// back to DefaultTTL.
func NewFileStore(root string, ttl time.Duration) *FileStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &FileStore{
		root:   root,
		ttl:    ttl,
		logger: logging.NewLogger("cache-fs"),
		now:    time.Now,
	}
}

// Get returns the entry for key if its file exists and is younger than the
// TTL.
func (s *FileStore) Get(ctx context.Context, key Key) (*Entry, error) {
	path := s.entryPath(key)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("stat cache file: %w", err)
	}

	if s.now().Sub(info.ModTime()) >= s.ttl {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(path)
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("decode cache file: %w", err)
	}

	cacheHits.WithLabelValues("fs").Inc()
	return &Entry{Items: payload.Items, CachedAt: info.ModTime()}, nil
}

// Set replaces the entry for key. The payload is written to a temporary
// file and renamed into place so readers never observe a partial entry.
func (s *FileStore) Set(ctx context.Context, key Key, items []upstream.Item) error {
	dir := s.tenantDir(key.Tenant())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("create tenant dir: %w", err)
	}

	data, err := json.Marshal(filePayload{Items: items})
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key.Hash()+".tmp-*")
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("create temp cache file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("replace cache file: %w", err)
	}

	s.logger.Debug().
		Str("tenant", key.Tenant()).
		Str("hash", key.Hash()).
		Int("items", len(items)).
		Msg("Cached aggregation result")

	return nil
}

// Purge removes the whole directory of one tenant.
func (s *FileStore) Purge(ctx context.Context, tenant string) error {
	dir := s.tenantDir(NormalizeDomain(tenant))

	if err := os.RemoveAll(dir); err != nil {
		cacheErrors.WithLabelValues("purge").Inc()
		return fmt.Errorf("purge tenant dir: %w", err)
	}

	s.logger.Info().Str("tenant", tenant).Msg("Purged tenant cache")
	return nil
}

func (s *FileStore) entryPath(key Key) string {
	return filepath.Join(s.tenantDir(key.Tenant()), key.Hash()+".json")
}

func (s *FileStore) tenantDir(tenant string) string {
	return filepath.Join(s.root, url.PathEscape(tenant))
}
