package pager

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// Prometheus metrics for pagination walks.
var (
	pagesWalkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summary_pagination_pages_total",
		Help: "Total collection pages walked",
	})

	loopCapExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "summary_pagination_loop_cap_exceeded_total",
		Help: "Total pagination walks aborted by the safety cap",
	})
)

// ErrPaginationLoop is returned when the upstream keeps advertising a next
// page past the configured safety cap. The upstream contract says the chain
// terminates; a looping or misbehaving upstream must not stall us forever.
var ErrPaginationLoop = errors.New("pagination safety cap exceeded")

// PageFetcher fetches a single collection page.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*upstream.Page, error)
}

// Config bounds a pagination walk.
type Config struct {
	// MaxPages caps the number of pages walked per aggregation.
	MaxPages int

	// MaxItems caps the number of accumulated items.
	MaxItems int
}

// DefaultConfig returns the default pagination bounds.
func DefaultConfig() Config {
	return Config{
		MaxPages: 50,
		MaxItems: 10000,
	}
}

// Pager drives repeated single-page fetches until the upstream stops
// advertising a next page.
type Pager struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a pager. Zero config fields fall back to defaults.
func New(fetcher PageFetcher, cfg Config) *Pager {
	def := DefaultConfig()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}

	return &Pager{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("pager"),
	}
}

// Paginate walks the collection starting at seedURL and returns every item
// in upstream page order. Items are never deduplicated or reordered. Every
// page URL is forced to the structured representation (format=json);
// parameters already present are preserved.
//
// On failure, the items gathered before the failure are returned alongside
// the error, so best-effort callers can still use the partial result.
func (p *Pager) Paginate(ctx context.Context, seedURL string) ([]upstream.Item, error) {
	next, err := EnsureJSONFormat(seedURL)
	if err != nil {
		return nil, fmt.Errorf("seed url: %w", err)
	}

	var items []upstream.Item
	pages := 0

	for next != "" {
		if pages >= p.config.MaxPages {
			loopCapExceededTotal.Inc()
			p.logger.Warn().
				Str("url", next).
				Int("pages", pages).
				Msg("Pagination page cap exceeded")
			return items, fmt.Errorf("%w: %d pages", ErrPaginationLoop, pages)
		}

		page, err := p.fetcher.FetchPage(ctx, next)
		if err != nil {
			return items, err
		}
		pages++
		pagesWalkedTotal.Inc()

		items = append(items, page.Items...)
		if len(items) > p.config.MaxItems {
			loopCapExceededTotal.Inc()
			p.logger.Warn().
				Str("url", next).
				Int("items", len(items)).
				Msg("Pagination item cap exceeded")
			return items, fmt.Errorf("%w: %d items", ErrPaginationLoop, len(items))
		}

		if !page.HasNext() {
			break
		}

		next, err = EnsureJSONFormat(page.Pagination.NextPageURL)
		if err != nil {
			return items, fmt.Errorf("next page url: %w", err)
		}
	}

	p.logger.Debug().
		Int("pages", pages).
		Int("items", len(items)).
		Msg("Pagination complete")

	return items, nil
}

// EnsureJSONFormat appends format=json to a URL unless already requested.
// Existing parameters are preserved, even a conflicting format value; only
// the missing json request is appended.
func EnsureJSONFormat(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for _, v := range q["format"] {
		if v == "json" {
			return u.String(), nil
		}
	}
	q.Add("format", "json")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
