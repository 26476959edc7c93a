package summary

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/pager"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// Fallback repeats pagination directly in the requester's own context when
// the gate path cannot complete. It never consults or populates the cache:
// its success may depend on the requester's credentials, which must not
// leak into a store shared across visitors.
type Fallback struct {
	upstreamCfg upstream.Config
	pagerCfg    pager.Config
	logger      zerolog.Logger
}

// NewFallback creates a fallback coordinator. Zero config fields fall back
// to the package defaults.
func NewFallback(upstreamCfg upstream.Config, pagerCfg pager.Config) *Fallback {
	return &Fallback{
		upstreamCfg: upstreamCfg,
		pagerCfg:    pagerCfg,
		logger:      logging.NewLogger("fallback"),
	}
}

// AggregateDirect walks seedURL with the given HTTP client, carrying the
// requester's cookies and credentials, and returns whatever it accumulated.
// It never fails the caller it protects: on error the partial result is
// returned and the condition is logged. A nil httpClient uses a plain
// default client.
func (f *Fallback) AggregateDirect(ctx context.Context, httpClient *http.Client, seedURL string, featuredOnly bool) []upstream.Item {
	cfg := f.upstreamCfg
	cfg.HTTPClient = httpClient

	p := pager.New(upstream.New(cfg), f.pagerCfg)

	items, err := p.Paginate(ctx, seedURL)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("url", seedURL).
			Int("items", len(items)).
			Msg("Direct aggregation ended early, returning partial result")
	}

	if featuredOnly {
		items = FilterStarred(items)
	}
	return items
}
