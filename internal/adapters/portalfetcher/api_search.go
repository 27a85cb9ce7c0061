package portalfetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/internal/extract/apijson"
	"estate-parser-service/internal/fieldutil"
)

// fetchAPIPage probes the portal's JSON API. Endpoints are guessed
// from the target search URL; the first candidate that yields
// listings is remembered per target so later pages skip the probe.
// No usable endpoint is not an error, just an empty page, so the
// orchestrator falls through to markup.
func (a *PortalFetcherAdapter) fetchAPIPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "PortalFetcherAdapter(APISearch)"})

	if endpoint, ok := a.rememberedEndpoint(target); ok {
		stubs, err := a.fetchAPIDocument(ctx, target, endpoint, page)
		if err != nil {
			return nil, err
		}
		logger.Debug("API page fetched", port.Fields{
			"endpoint": endpoint,
			"page":     page,
			"stubs":    len(stubs),
		})
		return stubs, nil
	}

	for _, endpoint := range apiEndpointCandidates(target) {
		stubs, err := a.fetchAPIDocument(ctx, target, endpoint, page)
		if err != nil {
			var blocked *blockwatch.BlockedError
			if errors.As(err, &blocked) {
				return nil, err
			}
			logger.Debug("API endpoint candidate unusable", port.Fields{
				"endpoint": endpoint,
				"error":    err.Error(),
			})
			continue
		}
		if len(stubs) == 0 {
			logger.Debug("API endpoint candidate yielded no listings", port.Fields{"endpoint": endpoint})
			continue
		}
		a.rememberEndpoint(target, endpoint)
		logger.Debug("API endpoint discovered", port.Fields{
			"endpoint": endpoint,
			"stubs":    len(stubs),
		})
		return stubs, nil
	}
	return nil, nil
}

func (a *PortalFetcherAdapter) fetchAPIDocument(ctx context.Context, target, endpoint string, page int) ([]domain.ListingStub, error) {
	body, err := a.fetchRaw(ctx, withPageParam(endpoint, page))
	if err != nil {
		return nil, err
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("portal adapter: response from %s is not JSON: %w", endpoint, err)
	}

	stubs := apijson.FindListings(root, domain.SourceAPI)
	for i := range stubs {
		stubs[i].URL = fieldutil.AbsoluteURL(target, stubs[i].URL)
	}
	return stubs, nil
}

// apiEndpointCandidates derives probe URLs from a search page URL:
// the same path under /api, then the generic /api/search carrying the
// original query.
func apiEndpointCandidates(target string) []string {
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return nil
	}

	var candidates []string
	if strings.HasPrefix(u.Path, "/api/") {
		candidates = append(candidates, target)
	} else {
		prefixed := *u
		prefixed.Path = "/api" + u.Path
		candidates = append(candidates, prefixed.String())
	}

	search := u.Scheme + "://" + u.Host + "/api/search"
	if u.RawQuery != "" {
		search += "?" + u.RawQuery
	}
	candidates = append(candidates, search)
	return candidates
}
