// Package summary orchestrates authorization, cache lookup, pagination and
// cache writes for tenant collection aggregation.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/auth"
	"github.com/OU-Studio/summary-access/pkg/cache"
	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// Prometheus metrics for aggregation requests.
var (
	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "summary_aggregations_total",
		Help: "Total aggregation requests by result",
	}, []string{"result"})

	aggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "summary_aggregation_duration_seconds",
		Help:    "Aggregation request duration in seconds",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Query describes one aggregation request.
type Query struct {
	// Domain is the tenant domain whose collection is aggregated.
	Domain string

	// BasePath is the collection path on the tenant site. A full URL is
	// accepted and reduced to path+query.
	BasePath string

	// Category and Tag narrow the collection upstream.
	Category string
	Tag      string

	// FeaturedOnly keeps only items the upstream flagged as starred.
	FeaturedOnly bool
}

// Pager walks a paginated collection to completion.
type Pager interface {
	Paginate(ctx context.Context, seedURL string) ([]upstream.Item, error)
}

// Service is the aggregation gate: it validates and authorizes a query,
// serves fresh cache entries, and otherwise paginates the upstream and
// refreshes the cache.
type Service struct {
	pager      Pager
	store      cache.Store
	authorizer auth.Authorizer
	logger     zerolog.Logger
}

// NewService creates the aggregation gate.
func NewService(pager Pager, store cache.Store, authorizer auth.Authorizer) *Service {
	return &Service{
		pager:      pager,
		store:      store,
		authorizer: authorizer,
		logger:     logging.NewLogger("summary"),
	}
}

// Aggregate produces the complete item list for a query.
//
// Flow per request: validate, authorize, cache lookup, and on miss or stale
// a full re-aggregation followed by a cache write. Storage failures are
// absorbed: a failed read counts as a miss, a failed write still serves the
// freshly fetched result.
func (s *Service) Aggregate(ctx context.Context, q Query) ([]upstream.Item, error) {
	start := time.Now()
	defer func() {
		aggregationDuration.Observe(time.Since(start).Seconds())
	}()

	q = q.normalize()

	if q.Domain == "" || !strings.HasPrefix(q.BasePath, "/") {
		aggregationsTotal.WithLabelValues("bad_request").Inc()
		return nil, ErrBadRequest
	}

	if !s.authorizer.IsAuthorized(q.Domain) {
		aggregationsTotal.WithLabelValues("forbidden").Inc()
		s.logger.Warn().Str("domain", q.Domain).Msg("Domain not on allow-list")
		return nil, ErrForbidden
	}

	key := q.cacheKey()

	entry, err := s.store.Get(ctx, key)
	if err == nil {
		aggregationsTotal.WithLabelValues("hit").Inc()
		s.logger.Debug().
			Str("domain", q.Domain).
			Str("hash", key.Hash()).
			Int("items", len(entry.Items)).
			Msg("Serving cached aggregation")
		return entry.Items, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().
			Err(err).
			Str("domain", q.Domain).
			Msg("Cache read failed, treating as miss")
	}

	items, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, key, items); err != nil {
		s.logger.Warn().
			Err(err).
			Str("domain", q.Domain).
			Msg("Cache write failed, serving uncached result")
	}

	aggregationsTotal.WithLabelValues("miss").Inc()
	s.logger.Info().
		Str("domain", q.Domain).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	return items, nil
}

// fetch paginates the upstream and applies the featured filter.
func (s *Service) fetch(ctx context.Context, q Query) ([]upstream.Item, error) {
	items, err := s.pager.Paginate(ctx, q.seedURL())
	if err != nil {
		if errors.Is(err, upstream.ErrAuthRequired) {
			aggregationsTotal.WithLabelValues("upstream_auth").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUpstreamAuthRequired, err)
		}
		aggregationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrAggregation, err)
	}

	if q.FeaturedOnly {
		items = FilterStarred(items)
	}
	return items, nil
}

// PurgeTenant deletes every cache entry for domain and returns the
// normalized tenant it acted on. The HTTP layer gates this behind the same
// privileged check as other admin operations.
func (s *Service) PurgeTenant(ctx context.Context, domain string) (string, error) {
	tenant := cache.NormalizeDomain(domain)
	if tenant == "" {
		return "", ErrBadRequest
	}

	if err := s.store.Purge(ctx, tenant); err != nil {
		s.logger.Error().Err(err).Str("tenant", tenant).Msg("Cache purge failed")
		return "", err
	}

	return tenant, nil
}

// FilterStarred keeps the items the upstream flagged as featured,
// preserving their relative order.
func FilterStarred(items []upstream.Item) []upstream.Item {
	filtered := make([]upstream.Item, 0, len(items))
	for _, it := range items {
		if it.Starred {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

func (q Query) normalize() Query {
	q.Domain = cache.NormalizeDomain(q.Domain)
	q.BasePath = cache.NormalizeBasePath(q.BasePath)
	q.Category = strings.TrimSpace(q.Category)
	q.Tag = strings.TrimSpace(q.Tag)
	return q
}

func (q Query) cacheKey() cache.Key {
	return cache.Key{
		Domain:       q.Domain,
		BasePath:     q.BasePath,
		Category:     q.Category,
		Tag:          q.Tag,
		FeaturedOnly: q.FeaturedOnly,
	}
}

// seedURL builds the upstream collection URL for the query. The pager adds
// format=json.
func (q Query) seedURL() string {
	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}

	seed := "https://" + q.Domain + q.BasePath
	if enc := params.Encode(); enc != "" {
		sep := "?"
		if strings.Contains(seed, "?") {
			sep = "&"
		}
		seed += sep + enc
	}
	return seed
}
