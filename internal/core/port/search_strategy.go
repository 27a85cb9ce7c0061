package port

import (
	"context"

	"estate-parser-service/internal/core/domain"
)

// SearchStrategyPort is one retrieval strategy in the fallback chain.
// FetchPage returns the listing stubs found on one search-result page.
// An empty slice with a nil error means the strategy is exhausted for
// that target; a BlockedError means the fetch hit anti-bot defenses.
type SearchStrategyPort interface {
	Name() string

	FetchPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error)
}

// DetailFetcherPort fetches and parses one listing's detail page.
type DetailFetcherPort interface {
	FetchDetail(ctx context.Context, listingURL string) (*domain.DetailRecord, error)
}
