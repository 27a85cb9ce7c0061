package portalfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
)

func newTestAdapter(t *testing.T, cfg Config) *PortalFetcherAdapter {
	t.Helper()
	adapter, err := NewPortalFetcherAdapter(cfg)
	require.NoError(t, err)
	return adapter
}

func strategyByName(t *testing.T, adapter *PortalFetcherAdapter, name string) port.SearchStrategyPort {
	t.Helper()
	for _, s := range adapter.Strategies() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no strategy named %q", name)
	return nil
}

func TestStrategiesFixedOrder(t *testing.T) {
	adapter := newTestAdapter(t, Config{})
	var names []string
	for _, s := range adapter.Strategies() {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{domain.SourceAPI, domain.SourceMarkup, domain.SourceSitemap}, names)
}

func TestAPISearchProbesAndRemembersEndpoint(t *testing.T) {
	var prefixedHits, searchHits int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/for-sale", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&prefixedHits, 1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&searchHits, 1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"searchResults":{"listings":[
				{"id":"5001","url":"/properties/5001","title":"Flat A","price":"£200,000"},
				{"id":"5002","url":"/properties/5002","title":"Flat B"}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"searchResults":{"listings":[]}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{Parallelism: 4})
	api := strategyByName(t, adapter, domain.SourceAPI)
	target := server.URL + "/for-sale?area=bow"

	stubs, err := api.FetchPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	require.Equal(t, "5001", stubs[0].ListingID)
	require.Equal(t, server.URL+"/properties/5001", stubs[0].URL)
	require.Equal(t, domain.SourceAPI, stubs[0].Source)
	require.NotNil(t, stubs[0].PriceValue)
	require.InDelta(t, 200000, *stubs[0].PriceValue, 0.001)
	require.EqualValues(t, 1, atomic.LoadInt64(&prefixedHits))
	require.EqualValues(t, 1, atomic.LoadInt64(&searchHits))

	// Page 2 goes straight to the remembered endpoint.
	stubs, err = api.FetchPage(context.Background(), target, 2)
	require.NoError(t, err)
	require.Empty(t, stubs)
	require.EqualValues(t, 1, atomic.LoadInt64(&prefixedHits))
	require.EqualValues(t, 2, atomic.LoadInt64(&searchHits))
}

func TestAPISearchNoEndpointIsEmptyNotError(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	api := strategyByName(t, adapter, domain.SourceAPI)

	stubs, err := api.FetchPage(context.Background(), server.URL+"/for-sale", 1)
	require.NoError(t, err)
	require.Empty(t, stubs)
}

func TestAPISearchSkipsNonJSONCandidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/for-sale", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>not an api</body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	api := strategyByName(t, adapter, domain.SourceAPI)

	stubs, err := api.FetchPage(context.Background(), server.URL+"/for-sale", 1)
	require.NoError(t, err)
	require.Empty(t, stubs)
}

func TestAPISearchBlockedAbortsProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "Access denied")
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	api := strategyByName(t, adapter, domain.SourceAPI)

	stubs, err := api.FetchPage(context.Background(), server.URL+"/for-sale", 1)
	require.Error(t, err)
	var blocked *blockwatch.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, http.StatusForbidden, blocked.StatusCode)
	require.Empty(t, stubs)
}

func TestMarkupSearchFetchesAndPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/to-rent", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `<html><body>
			<div class="list">
			  <div class="searchResult" data-id="6001"><a href="/properties/6001">One</a><span class="price">£1,200 pcm</span></div>
			  <div class="searchResult" data-id="6002"><a href="/properties/6002">Two</a></div>
			</div>
			</body></html>`)
			return
		}
		fmt.Fprint(w, "<html><body><p>No more results</p></body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	markup := strategyByName(t, adapter, domain.SourceMarkup)
	target := server.URL + "/to-rent"

	stubs, err := markup.FetchPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	require.Equal(t, "6001", stubs[0].ListingID)
	require.Equal(t, server.URL+"/properties/6001", stubs[0].URL)
	require.Equal(t, domain.SourceDOM, stubs[0].Source)

	stubs, err = markup.FetchPage(context.Background(), target, 2)
	require.NoError(t, err)
	require.Empty(t, stubs)
}

func TestMarkupSearchRetriesOnceOnServerError(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<html><body>
		<div class="searchResult" data-id="6003"><a href="/properties/6003">Three</a></div>
		</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	markup := strategyByName(t, adapter, domain.SourceMarkup)

	stubs, err := markup.FetchPage(context.Background(), server.URL+"/flaky", 1)
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	require.Equal(t, "6003", stubs[0].ListingID)
	require.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestMarkupSearchServerErrorAfterRetry(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	markup := strategyByName(t, adapter, domain.SourceMarkup)

	_, err := markup.FetchPage(context.Background(), server.URL+"/broken", 1)
	require.Error(t, err)
	var blocked *blockwatch.BlockedError
	require.False(t, errors.As(err, &blocked))
	require.Contains(t, err.Error(), "status 500")
	require.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestServiceUnavailableClassifiedBlocked(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/overloaded", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	markup := strategyByName(t, adapter, domain.SourceMarkup)

	_, err := markup.FetchPage(context.Background(), server.URL+"/overloaded", 1)
	var blocked *blockwatch.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, http.StatusServiceUnavailable, blocked.StatusCode)
	require.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func sitemapURLSet(locs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		b.WriteString("<url><loc>" + loc + "</loc></url>")
	}
	b.WriteString("</urlset>")
	return b.String()
}

func sitemapServer(t *testing.T) (*httptest.Server, *int64) {
	t.Helper()
	var indexHits int64

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&indexHits, 1)
		base := "http://" + r.Host
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
		<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
		<sitemap><loc>%s/sitemap-a.xml</loc></sitemap>
		<sitemap><loc>%s/sitemap-b.xml</loc></sitemap>
		</sitemapindex>`, base, base)
	})
	mux.HandleFunc("/sitemap-a.xml", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		fmt.Fprint(w, sitemapURLSet(
			base+"/properties/9001",
			base+"/properties/9002",
			base+"/about-us",
			base+"/properties/9003",
		))
	})
	mux.HandleFunc("/sitemap-b.xml", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		fmt.Fprint(w, sitemapURLSet(
			base+"/for-sale/details/9004",
			base+"/listings-9005.html",
			base+"/properties/9006",
		))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &indexHits
}

func TestSitemapSearchWalksIndex(t *testing.T) {
	server, indexHits := sitemapServer(t)

	adapter := newTestAdapter(t, Config{})
	sitemap := strategyByName(t, adapter, domain.SourceSitemap)
	target := server.URL + "/for-sale?area=bow"

	stubs, err := sitemap.FetchPage(context.Background(), target, 1)
	require.NoError(t, err)
	require.Len(t, stubs, 6)
	require.Equal(t, "9001", stubs[0].ListingID)
	require.Equal(t, server.URL+"/properties/9001", stubs[0].URL)
	require.Equal(t, domain.SourceSitemap, stubs[0].Source)
	require.Equal(t, "9004", stubs[3].ListingID)
	require.EqualValues(t, 1, atomic.LoadInt64(indexHits))

	// The walk happens once; later pages are empty without traffic.
	stubs, err = sitemap.FetchPage(context.Background(), target, 2)
	require.NoError(t, err)
	require.Empty(t, stubs)
	require.EqualValues(t, 1, atomic.LoadInt64(indexHits))
}

func TestSitemapSearchHonorsURLLimit(t *testing.T) {
	server, _ := sitemapServer(t)

	adapter := newTestAdapter(t, Config{SitemapURLLimit: 4})
	sitemap := strategyByName(t, adapter, domain.SourceSitemap)

	stubs, err := sitemap.FetchPage(context.Background(), server.URL+"/for-sale", 1)
	require.NoError(t, err)
	require.Len(t, stubs, 4)
	require.Equal(t, "9004", stubs[3].ListingID)
}

func TestFetchDetailParsesListingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/properties/1111", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
		<meta property="og:image" content="/media/1111/cover.jpg">
		</head><body>
		<h1>2 bed flat for sale on Fairfield Road</h1>
		<address>Fairfield Road, Bow, London E3 2QA</address>
		<span class="price">£450,000</span>
		<div class="property-description">Top floor flat with a private terrace.</div>
		<dl><dt>Tenure</dt><dd>Leasehold</dd></dl>
		</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newTestAdapter(t, Config{})
	listingURL := server.URL + "/properties/1111"

	record, err := adapter.FetchDetail(context.Background(), listingURL)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, listingURL, record.URL)
	require.Equal(t, "2 bed flat for sale on Fairfield Road", record.Title)
	require.Equal(t, "Fairfield Road, Bow, London E3 2QA", record.Address)
	require.Equal(t, "E3 2QA", record.PostalCode)
	require.NotNil(t, record.PriceValue)
	require.InDelta(t, 450000, *record.PriceValue, 0.001)
	require.Equal(t, "Leasehold", record.Tenure)
	require.Equal(t, "Top floor flat with a private terrace.", record.Description)
	require.Equal(t, []string{server.URL + "/media/1111/cover.jpg"}, record.Images)
}

func TestFetchDetailGonePageIsAbsenceNotError(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()

	adapter := newTestAdapter(t, Config{})

	record, err := adapter.FetchDetail(context.Background(), server.URL+"/properties/99999")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestFetchDetailBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "unusual traffic from your network")
	}))
	defer server.Close()

	adapter := newTestAdapter(t, Config{})

	record, err := adapter.FetchDetail(context.Background(), server.URL+"/properties/1111")
	require.Nil(t, record)
	var blocked *blockwatch.BlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, http.StatusTooManyRequests, blocked.StatusCode)
}
