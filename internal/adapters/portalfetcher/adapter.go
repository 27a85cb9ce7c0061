package portalfetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
)

const (
	defaultParallelism    = 2
	defaultRequestTimeout = 20 * time.Second
	defaultSitemapLimit   = 200
)

// Config tunes the shared transport for all strategies.
type Config struct {
	AllowedDomains []string
	Parallelism    int
	// RandomDelay is the extra random wait before each request;
	// zero disables it.
	RandomDelay    time.Duration
	RequestTimeout time.Duration
	// SitemapURLLimit caps how many listing URLs one sitemap walk collects.
	SitemapURLLimit int
}

// PortalFetcherAdapter owns all portal HTTP traffic. A parent collector
// carries the limits and identity headers; every operation clones it.
type PortalFetcherAdapter struct {
	collector       *colly.Collector
	sitemapURLLimit int

	// Productive API endpoints discovered per target, so later pages
	// skip the candidate probe.
	mu           sync.Mutex
	apiEndpoints map[string]string
}

// NewPortalFetcherAdapter builds the parent collector.
func NewPortalFetcherAdapter(cfg Config) (*PortalFetcherAdapter, error) {
	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	c := colly.NewCollector(opts...)

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = defaultParallelism
	}
	delay := cfg.RandomDelay
	if delay < 0 {
		delay = 0
	}
	// Inherited by every clone of the collector.
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		RandomDelay: delay,
	})
	if err != nil {
		return nil, fmt.Errorf("portal adapter: failed to set limit rule: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	c.SetRequestTimeout(timeout)

	limit := cfg.SitemapURLLimit
	if limit <= 0 {
		limit = defaultSitemapLimit
	}

	return &PortalFetcherAdapter{
		collector:       c,
		sitemapURLLimit: limit,
		apiEndpoints:    make(map[string]string),
	}, nil
}

// Strategies returns the fallback chain in its fixed order.
func (a *PortalFetcherAdapter) Strategies() []port.SearchStrategyPort {
	return []port.SearchStrategyPort{
		apiSearch{adapter: a},
		markupSearch{adapter: a},
		sitemapSearch{adapter: a},
	}
}

type apiSearch struct{ adapter *PortalFetcherAdapter }

func (s apiSearch) Name() string { return domain.SourceAPI }

func (s apiSearch) FetchPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	return s.adapter.fetchAPIPage(ctx, target, page)
}

type markupSearch struct{ adapter *PortalFetcherAdapter }

func (s markupSearch) Name() string { return domain.SourceMarkup }

func (s markupSearch) FetchPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	return s.adapter.fetchMarkupPage(ctx, target, page)
}

type sitemapSearch struct{ adapter *PortalFetcherAdapter }

func (s sitemapSearch) Name() string { return domain.SourceSitemap }

func (s sitemapSearch) FetchPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	return s.adapter.fetchSitemapListings(ctx, target, page)
}

// newCollector clones the parent collector. Limits and timeouts are
// shared through the backend; callbacks are not, so the identity
// extensions are re-applied per clone.
func (a *PortalFetcherAdapter) newCollector() *colly.Collector {
	c := a.collector.Clone()
	extensions.RandomUserAgent(c)
	extensions.Referer(c)
	return c
}

// fetchRaw downloads one URL through a clone of the parent collector.
// 5xx and transport failures are retried once; a blocked response
// comes back as *blockwatch.BlockedError.
func (a *PortalFetcherAdapter) fetchRaw(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := a.newCollector()

	var body []byte
	var status int
	var fetchErr error

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	})

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if retryableStatus(r.StatusCode) && r.Ctx.Get("retried") == "" {
			r.Ctx.Put("retried", "1")
			_ = r.Request.Retry()
			return
		}
		status = r.StatusCode
		body = r.Body
		fetchErr = err
	})

	visitErr := collector.Visit(pageURL)
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reason := blockwatch.Classify(status, body); reason != "" {
		return nil, &blockwatch.BlockedError{URL: pageURL, StatusCode: status, Reason: reason}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("portal adapter: request to %s failed with status %d: %w", pageURL, status, fetchErr)
	}
	// Visit reports the pre-retry failure even when the retry
	// succeeded; only trust it when no response ever arrived.
	if visitErr != nil && status == 0 {
		return nil, fmt.Errorf("portal adapter: failed to visit %s: %w", pageURL, visitErr)
	}
	return body, nil
}

// retryableStatus: transport failures surface as status 0.
func retryableStatus(status int) bool {
	return status == 0 || status >= 500
}

func (a *PortalFetcherAdapter) rememberedEndpoint(target string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	endpoint, ok := a.apiEndpoints[target]
	return endpoint, ok
}

func (a *PortalFetcherAdapter) rememberEndpoint(target, endpoint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apiEndpoints[target] = endpoint
}

// withPageParam sets the page query parameter on a copy of rawURL.
func withPageParam(rawURL string, page int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
