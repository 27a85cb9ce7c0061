package portalfetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/internal/extract/apijson"
	"estate-parser-service/internal/fieldutil"
)

// Card container selectors, most specific first. The first selector
// with any match supplies the whole card set for the page.
var cardSelectors = []string{
	`[data-testid*="result"]`,
	`[id^="property-"]`,
	`.property-card`,
	`article[class*="listing"]`,
	`div[class*="searchResult"]`,
}

var (
	cardLinkSelectors = []string{
		`a[href*="/property"]`,
		`a[href*="/properties/"]`,
		`a[href*="/details/"]`,
		`a[href*="/listing"]`,
		`a[href]`,
	}
	cardTitleSelectors   = []string{`[data-testid*="title"]`, `h2`, `h3`, `[class*="title"]`}
	cardAddressSelectors = []string{`address`, `[data-testid*="address"]`, `[class*="address"]`}
	cardPriceSelectors   = []string{`[data-testid*="price"]`, `[class*="price"]`}
	cardBedSelectors     = []string{`[data-testid*="bed"]`, `[class*="bed"]`}
	cardBathSelectors    = []string{`[data-testid*="bath"]`, `[class*="bath"]`}
)

var embeddedStateRegex = regexp.MustCompile(`window\.(?:__INITIAL_STATE__|__PRELOADED_STATE__)\s*=\s*`)

// fetchMarkupPage downloads one search-results page and extracts
// stubs from its markup.
func (a *PortalFetcherAdapter) fetchMarkupPage(ctx context.Context, target string, page int) ([]domain.ListingStub, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "PortalFetcherAdapter(MarkupSearch)"})

	pageURL := withPageParam(target, page)
	body, err := a.fetchRaw(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("portal adapter: failed to parse page %s: %w", pageURL, err)
	}

	stubs := extractSearchStubs(doc, target)
	logger.Debug("Markup page extracted", port.Fields{
		"url":   pageURL,
		"page":  page,
		"stubs": len(stubs),
	})
	return stubs, nil
}

// extractSearchStubs runs the three markup sub-sources in fixed
// precedence (JSON-LD, embedded state payload, DOM cards) and
// deduplicates by identity within the page, first source winning.
func extractSearchStubs(doc *goquery.Document, base string) []domain.ListingStub {
	var ordered []domain.ListingStub

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		ordered = append(ordered, ldListingStubs(s.Text(), base)...)
	})

	if root, ok := findEmbeddedState(doc); ok {
		stateStubs := apijson.FindListings(root, domain.SourceMarkup)
		for i := range stateStubs {
			stateStubs[i].URL = fieldutil.AbsoluteURL(base, stateStubs[i].URL)
		}
		ordered = append(ordered, stateStubs...)
	}

	ordered = append(ordered, domCardStubs(doc, base)...)

	seen := make(map[string]struct{}, len(ordered))
	var out []domain.ListingStub
	for _, stub := range ordered {
		key := stub.Identity()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, stub)
	}
	return out
}

// findEmbeddedState locates the hydration payload: a
// script#__NEXT_DATA__ body, or a window.__INITIAL_STATE__ /
// __PRELOADED_STATE__ assignment inside any script tag.
func findEmbeddedState(doc *goquery.Document) (any, bool) {
	if text := doc.Find("script#__NEXT_DATA__").First().Text(); strings.TrimSpace(text) != "" {
		var root any
		if err := json.Unmarshal([]byte(text), &root); err == nil {
			return root, true
		}
	}

	var found any
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		loc := embeddedStateRegex.FindStringIndex(text)
		if loc == nil {
			return true
		}
		// Decode exactly one JSON value; trailing statements in the
		// same script tag are ignored by the decoder.
		dec := json.NewDecoder(strings.NewReader(text[loc[1]:]))
		var root any
		if err := dec.Decode(&root); err == nil && root != nil {
			found = root
			return false
		}
		return true
	})
	return found, found != nil
}

// domCardStubs is the last-resort sub-source: per-card field scraping.
func domCardStubs(doc *goquery.Document, base string) []domain.ListingStub {
	for _, sel := range cardSelectors {
		cards := doc.Find(sel)
		if cards.Length() == 0 {
			continue
		}
		var stubs []domain.ListingStub
		cards.Each(func(_ int, card *goquery.Selection) {
			if stub, ok := stubFromCard(card, base); ok {
				stubs = append(stubs, stub)
			}
		})
		if len(stubs) > 0 {
			return stubs
		}
	}
	return nil
}

func stubFromCard(card *goquery.Selection, base string) (domain.ListingStub, bool) {
	stub := domain.ListingStub{Source: domain.SourceDOM}

	for _, sel := range cardLinkSelectors {
		if href, ok := card.Find(sel).First().Attr("href"); ok {
			if u := fieldutil.AbsoluteURL(base, href); u != "" {
				stub.URL = u
				break
			}
		}
	}

	if id, ok := card.Attr("id"); ok && strings.HasPrefix(id, "property-") {
		stub.ListingID = strings.TrimPrefix(id, "property-")
	}
	if stub.ListingID == "" {
		for _, attr := range []string{"data-id", "data-listing-id", "data-property-id"} {
			if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
				stub.ListingID = strings.TrimSpace(v)
				break
			}
		}
	}
	if stub.ListingID == "" && stub.URL != "" {
		stub.ListingID = fieldutil.ListingIDFromURL(stub.URL)
	}

	stub.Title = fieldutil.CleanText(firstText(card, cardTitleSelectors))
	stub.Address = fieldutil.CleanText(firstText(card, cardAddressSelectors))

	if priceText := fieldutil.CleanText(firstText(card, cardPriceSelectors)); priceText != "" {
		stub.Price = priceText
		stub.PriceValue = fieldutil.ParsePrice(priceText)
		stub.PriceCurrency = fieldutil.CurrencyFromText(priceText)
	}

	stub.Beds = fieldutil.ParseCount(firstText(card, cardBedSelectors))
	stub.Baths = fieldutil.ParseCount(firstText(card, cardBathSelectors))

	if src := firstAttr(card.Find("img").First(), "src", "data-src", "data-lazy-src"); src != "" {
		if u := fieldutil.AbsoluteURL(base, src); u != "" {
			stub.Images = []string{u}
		}
	}

	return stub, stub.Identity() != ""
}

// firstText returns the first selector's first non-empty text.
func firstText(scope *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(scope.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(s *goquery.Selection, attrs ...string) string {
	for _, attr := range attrs {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
