package portalfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/internal/fieldutil"
)

var (
	detailTitleSelectors = []string{
		`h1[data-testid*="title"]`,
		`h1[class*="title"]`,
		`h1`,
	}
	detailAddressSelectors = []string{
		`[data-testid*="address"]`,
		`address`,
		`h1 + p[class*="address"]`,
		`[class*="address"]`,
	}
	detailPriceSelectors = []string{
		`[data-testid*="price"]`,
		`[class*="price"] span`,
		`[class*="price"]`,
	}
	detailDescriptionSelectors = []string{
		`[data-testid*="description"]`,
		`#description`,
		`[class*="description"]`,
		`[itemprop="description"]`,
	}
	detailBedSelectors = []string{
		`[data-testid*="bed"]`,
		`[class*="bedroom"]`,
		`[class*="bed"]`,
	}
	detailBathSelectors = []string{
		`[data-testid*="bath"]`,
		`[class*="bathroom"]`,
		`[class*="bath"]`,
	}
	detailFeatureSelectors = []string{
		`[data-testid*="feature"] li`,
		`[class*="key-feature"] li`,
		`[class*="feature"] li`,
		`ul[class*="amenities"] li`,
	}
	detailAgentSelectors = []string{
		`[data-testid*="agent"] [class*="name"]`,
		`[class*="agent"] [class*="name"]`,
		`[class*="agent-name"]`,
		`[class*="branch"] [class*="name"]`,
	}
	detailImageSelectors = []string{
		`[data-testid*="gallery"] img`,
		`[class*="gallery"] img`,
		`[class*="carousel"] img`,
	}
)

// FetchDetail downloads one listing page and parses a detail record.
// A 404/410 page means the listing is gone: (nil, nil), not an error.
func (a *PortalFetcherAdapter) FetchDetail(ctx context.Context, listingURL string) (*domain.DetailRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "PortalFetcherAdapter(FetchDetail)"})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := a.newCollector()

	var record *domain.DetailRecord
	var criticalErr error
	var gone bool

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	})

	collector.OnError(func(r *colly.Response, err error) {
		if retryableStatus(r.StatusCode) && r.Ctx.Get("retried") == "" {
			r.Ctx.Put("retried", "1")
			_ = r.Request.Retry()
			return
		}
		if r.StatusCode == http.StatusNotFound || r.StatusCode == http.StatusGone {
			logger.Warn("Listing page is gone", port.Fields{"url": listingURL, "status": r.StatusCode})
			gone = true
			return
		}
		if reason := blockwatch.Classify(r.StatusCode, r.Body); reason != "" {
			criticalErr = &blockwatch.BlockedError{URL: listingURL, StatusCode: r.StatusCode, Reason: reason}
			return
		}
		criticalErr = fmt.Errorf("portal adapter: detail request to %s failed with status %d: %w", listingURL, r.StatusCode, err)
	})

	collector.OnResponse(func(r *colly.Response) {
		if reason := blockwatch.Classify(r.StatusCode, r.Body); reason != "" {
			criticalErr = &blockwatch.BlockedError{URL: listingURL, StatusCode: r.StatusCode, Reason: reason}
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			criticalErr = fmt.Errorf("portal adapter: failed to parse detail page %s: %w", listingURL, err)
			return
		}
		record = extractDetailRecord(doc, r.Request.URL.String())
	})

	visitErr := collector.Visit(listingURL)
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if criticalErr != nil {
		return nil, criticalErr
	}
	if gone {
		return nil, nil
	}
	if record == nil {
		// Visit reports the pre-retry failure even when the retry
		// succeeded; only trust it when nothing was parsed.
		if visitErr != nil {
			return nil, fmt.Errorf("portal adapter: failed to visit %s: %w", listingURL, visitErr)
		}
		return nil, nil
	}
	return record, nil
}

// extractDetailRecord builds a detail record from one listing page:
// JSON-LD entity first, then per-field DOM selector fallbacks, then
// meta tags. Missing fields stay empty; this never fails.
func extractDetailRecord(doc *goquery.Document, pageURL string) *domain.DetailRecord {
	record := &domain.DetailRecord{}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if found := ldDetailRecord(s.Text(), pageURL); found != nil {
			record = found
			return false
		}
		return true
	})

	if record.URL == "" {
		record.URL = pageURL
	}

	root := doc.Selection
	if record.Title == "" {
		record.Title = fieldutil.CleanText(firstText(root, detailTitleSelectors))
	}
	if record.Address == "" {
		record.Address = fieldutil.CleanText(firstText(root, detailAddressSelectors))
	}
	if record.Price == "" && record.PriceValue == nil {
		if priceText := fieldutil.CleanText(firstText(root, detailPriceSelectors)); priceText != "" {
			record.Price = priceText
			record.PriceValue = fieldutil.ParsePrice(priceText)
			if record.PriceCurrency == "" {
				record.PriceCurrency = fieldutil.CurrencyFromText(priceText)
			}
		}
	}
	if record.Description == "" {
		record.Description = fieldutil.CleanText(firstText(root, detailDescriptionSelectors))
	}
	if record.Beds == nil {
		record.Beds = fieldutil.ParseCount(firstText(root, detailBedSelectors))
	}
	if record.Baths == nil {
		record.Baths = fieldutil.ParseCount(firstText(root, detailBathSelectors))
	}
	if len(record.Features) == 0 {
		record.Features = collectTexts(root, detailFeatureSelectors)
	}
	if record.AgentName == "" {
		record.AgentName = fieldutil.CleanText(firstText(root, detailAgentSelectors))
	}
	if record.Tenure == "" {
		record.Tenure = labeledValue(doc, "tenure")
	}
	if record.FloorArea == "" {
		record.FloorArea = labeledValue(doc, "floor area")
		if record.FloorArea == "" {
			record.FloorArea = labeledValue(doc, "size")
		}
	}
	if record.PostalCode == "" {
		record.PostalCode = fieldutil.ExtractPostcode(record.Address)
	}

	if len(record.Images) == 0 {
		for _, sel := range detailImageSelectors {
			doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
				if src := firstAttr(img, "src", "data-src", "data-lazy-src"); src != "" {
					if u := fieldutil.AbsoluteURL(pageURL, src); u != "" {
						record.Images = append(record.Images, u)
					}
				}
			})
			if len(record.Images) > 0 {
				break
			}
		}
	}
	if len(record.Images) == 0 {
		if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			if u := fieldutil.AbsoluteURL(pageURL, img); u != "" {
				record.Images = []string{u}
			}
		}
	}
	if record.Description == "" {
		if d, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			record.Description = fieldutil.CleanText(d)
		}
	}

	return record
}

// collectTexts gathers the non-empty texts of the first selector with
// any match.
func collectTexts(scope *goquery.Selection, selectors []string) []string {
	for _, sel := range selectors {
		var out []string
		scope.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := fieldutil.CleanText(s.Text()); text != "" {
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// labeledValue reads definition-list style "label: value" pairs: the
// dd following a dt whose label contains key (case-insensitive).
func labeledValue(doc *goquery.Document, key string) string {
	var value string
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(dt.Text()), key) {
			value = fieldutil.CleanText(dt.Next().Text())
			return value == ""
		}
		return true
	})
	return value
}
