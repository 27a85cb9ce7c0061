package portalfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/internal/fieldutil"
)

// maxSitemapDepth bounds index recursion below the root document.
// Real indexes are one or two levels deep.
const maxSitemapDepth = 3

// sitemapCandidatePaths are tried against the target's host in order;
// the first usable document wins.
var sitemapCandidatePaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
}

var listingPathRegex = regexp.MustCompile(`(?i)/(property|properties|listing|listings|details|for-sale|to-rent)[/-]`)

// fetchSitemapListings walks the portal's sitemap tree once, on page
// 1; later pages report empty so the strategy terminates naturally.
func (a *PortalFetcherAdapter) fetchSitemapListings(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	if page > 1 {
		return nil, nil
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "PortalFetcherAdapter(SitemapSearch)"})

	base, err := url.Parse(target)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("portal adapter: invalid sitemap target %q", target)
	}
	root := base.Scheme + "://" + base.Host

	var collected []string
	seen := make(map[string]struct{})
	for _, path := range sitemapCandidatePaths {
		candidate := root + path
		if err := a.walkSitemap(ctx, candidate, 0, seen, &collected); err != nil {
			var blocked *blockwatch.BlockedError
			if errors.As(err, &blocked) {
				return nil, err
			}
			logger.Debug("Sitemap candidate unusable", port.Fields{
				"url":   candidate,
				"error": err.Error(),
			})
			continue
		}
		if len(collected) > 0 {
			break
		}
	}

	stubs := make([]domain.ListingStub, 0, len(collected))
	for _, u := range collected {
		stubs = append(stubs, domain.ListingStub{
			ListingID: fieldutil.ListingIDFromURL(u),
			URL:       u,
			Source:    domain.SourceSitemap,
		})
	}
	logger.Debug("Sitemap walk finished", port.Fields{"target": target, "stubs": len(stubs)})
	return stubs, nil
}

// walkSitemap recurses depth-first through sitemap indexes and
// collects listing-shaped URLs from URL sets, stopping at the
// adapter's URL limit.
func (a *PortalFetcherAdapter) walkSitemap(ctx context.Context, docURL string, depth int, seen map[string]struct{}, out *[]string) error {
	if len(*out) >= a.sitemapURLLimit || depth > maxSitemapDepth {
		return nil
	}
	if _, visited := seen[docURL]; visited {
		return nil
	}
	seen[docURL] = struct{}{}

	body, err := a.fetchRaw(ctx, docURL)
	if err != nil {
		return err
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("portal adapter: failed to parse sitemap %s: %w", docURL, err)
	}

	if xmlquery.FindOne(doc, "//sitemapindex") != nil {
		for _, loc := range xmlquery.Find(doc, "//sitemapindex/sitemap/loc") {
			if len(*out) >= a.sitemapURLLimit {
				break
			}
			child := strings.TrimSpace(loc.InnerText())
			if child == "" {
				continue
			}
			if err := a.walkSitemap(ctx, child, depth+1, seen, out); err != nil {
				var blocked *blockwatch.BlockedError
				if errors.As(err, &blocked) {
					return err
				}
				// One broken child sitemap does not spoil the rest.
				continue
			}
		}
		return nil
	}

	for _, loc := range xmlquery.Find(doc, "//urlset/url/loc") {
		if len(*out) >= a.sitemapURLLimit {
			break
		}
		u := strings.TrimSpace(loc.InnerText())
		if u != "" && listingPathRegex.MatchString(u) {
			*out = append(*out, u)
		}
	}
	return nil
}
