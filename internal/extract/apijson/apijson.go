// Package apijson recovers listing stubs from JSON payloads with no
// fixed schema. Portal API responses rename and re-nest fields across
// deployments, so the extractor walks the whole decoded tree and
// duck-types listing-shaped objects instead of decoding rigid DTOs.
package apijson

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/fieldutil"
)

// maxTraversalSteps caps how many nodes one FindListings call visits.
// Real payloads stay far below this; the cap only matters for
// pathological or self-referential inputs.
const maxTraversalSteps = 100000

// Ordered key synonyms per logical field. The first key present in a
// candidate object wins.
var (
	idKeys       = []string{"id", "listingId", "listing_id", "propertyId", "property_id"}
	urlKeys      = []string{"url", "listingUrl", "listing_url", "detailUrl", "detail_url", "propertyUrl", "property_url", "href", "slug"}
	titleKeys    = []string{"title", "heading", "summary", "name", "displayAddress"}
	addressKeys  = []string{"address", "displayAddress", "display_address", "fullAddress", "full_address", "addressLine"}
	localityKeys = []string{"town", "city", "locality", "addressLocality", "town_or_city", "townOrCity"}
	postcodeKeys = []string{"postcode", "postalCode", "postal_code", "outcode"}
	priceKeys    = []string{"price", "displayPrice", "display_price", "priceText", "price_text", "askingPrice", "asking_price", "amount"}
	currencyKeys = []string{"currency", "currencyCode", "currency_code", "priceCurrency"}
	bedKeys      = []string{"bedrooms", "beds", "numBedrooms", "num_bedrooms", "bedroomCount"}
	bathKeys     = []string{"bathrooms", "baths", "numBathrooms", "num_bathrooms", "bathroomCount"}
	typeKeys     = []string{"propertyType", "property_type", "propertySubType", "property_sub_type", "type"}
	latKeys      = []string{"latitude", "lat"}
	lngKeys      = []string{"longitude", "lng", "lon", "long"}
	imageKeys    = []string{"images", "imageUrls", "image_urls", "photos", "media", "gallery", "mainImage"}
	agentKeys    = []string{"agent", "agentName", "agent_name", "branchName", "branch_name", "customer"}
	markerKeys   = []string{"price", "displayPrice", "bedrooms", "beds", "address", "displayAddress", "title", "propertyType"}
	geoKeys      = []string{"location", "coordinates", "geo", "position"}
)

// FindListings walks an arbitrary decoded JSON value and collects
// every array element that looks like a listing, normalized into
// stubs tagged with src. The walk is an explicit worklist with a
// visited set over object identities, so shared references and cycles
// terminate. Results are deduplicated by identity within the call.
//
// The predicate is a heuristic, not a contract: callers should log
// counts at debug level rather than trust the result blindly.
func FindListings(root any, src string) []domain.ListingStub {
	var stubs []domain.ListingStub
	admitted := make(map[string]struct{})
	visited := make(map[uintptr]struct{})

	work := []any{root}
	steps := 0

	for len(work) > 0 && steps < maxTraversalSteps {
		steps++
		node := work[len(work)-1]
		work = work[:len(work)-1]

		switch v := node.(type) {
		case map[string]any:
			ptr := reflect.ValueOf(v).Pointer()
			if _, seen := visited[ptr]; seen {
				continue
			}
			visited[ptr] = struct{}{}

			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			// Push in reverse so children pop in key order.
			for i := len(keys) - 1; i >= 0; i-- {
				work = append(work, v[keys[i]])
			}

		case []any:
			for _, el := range v {
				m, ok := el.(map[string]any)
				if !ok || !looksLikeListing(m) {
					continue
				}
				stub := stubFromMap(m, src)
				key := stub.Identity()
				if key == "" {
					continue
				}
				if _, dup := admitted[key]; dup {
					continue
				}
				admitted[key] = struct{}{}
				stubs = append(stubs, stub)
			}
			// Wrapper arrays may nest further listing arrays, so
			// children are pushed even when elements matched above.
			for i := len(v) - 1; i >= 0; i-- {
				work = append(work, v[i])
			}
		}
	}
	return stubs
}

// looksLikeListing reports whether an object is plausibly a listing.
// An id-like field is enough on its own. A URL-like field alone is
// not: media and navigation objects carry bare "url" keys, so a
// url-only candidate must also show one marker field (price, beds,
// address, title or type).
func looksLikeListing(m map[string]any) bool {
	if coerceID(firstValue(m, idKeys)) != "" {
		return true
	}
	if firstString(m, urlKeys) == "" {
		return false
	}
	for _, k := range markerKeys {
		if v, ok := m[k]; ok && v != nil {
			return true
		}
	}
	return false
}

func stubFromMap(m map[string]any, src string) domain.ListingStub {
	stub := domain.ListingStub{Source: src}

	stub.ListingID = coerceID(firstValue(m, idKeys))
	stub.URL = firstString(m, urlKeys)
	stub.Title = fieldutil.CleanText(firstString(m, titleKeys))
	stub.Address = fieldutil.CleanText(firstString(m, addressKeys))
	stub.Locality = fieldutil.CleanText(firstString(m, localityKeys))
	stub.PostalCode = fieldutil.ExtractPostcode(firstString(m, postcodeKeys))
	stub.PropertyType = fieldutil.NormalizeType(firstString(m, typeKeys))
	stub.Beds = coerceInt(firstValue(m, bedKeys))
	stub.Baths = coerceInt(firstValue(m, bathKeys))
	stub.Images = coerceImages(firstValue(m, imageKeys))
	stub.AgentName = coerceAgent(firstValue(m, agentKeys))

	applyPrice(&stub, firstValue(m, priceKeys))
	if stub.PriceCurrency == "" {
		stub.PriceCurrency = firstString(m, currencyKeys)
	}

	stub.Latitude = coerceFloat(firstValue(m, latKeys))
	stub.Longitude = coerceFloat(firstValue(m, lngKeys))
	if stub.Latitude == nil || stub.Longitude == nil {
		for _, k := range geoKeys {
			nested, ok := m[k].(map[string]any)
			if !ok {
				continue
			}
			if stub.Latitude == nil {
				stub.Latitude = coerceFloat(firstValue(nested, latKeys))
			}
			if stub.Longitude == nil {
				stub.Longitude = coerceFloat(firstValue(nested, lngKeys))
			}
			if stub.Latitude != nil && stub.Longitude != nil {
				break
			}
		}
	}

	return stub
}

// applyPrice fills the display text, numeric value and currency from
// whatever shape the payload uses: a display string, a bare number,
// or a nested object like {"amount": 325000, "currencyCode": "GBP"}.
func applyPrice(stub *domain.ListingStub, v any) {
	switch t := v.(type) {
	case string:
		stub.Price = fieldutil.CleanText(t)
		stub.PriceValue = fieldutil.ParsePrice(t)
		stub.PriceCurrency = fieldutil.CurrencyFromText(t)
	case float64, json.Number:
		stub.PriceValue = coerceFloat(t)
	case map[string]any:
		stub.PriceValue = coerceFloat(firstValue(t, []string{"amount", "value", "price"}))
		stub.PriceCurrency = firstString(t, currencyKeys)
		display := firstString(t, []string{"displayPrice", "display", "text"})
		if display == "" {
			// One level deeper: {"displayPrices": [{"displayPrice": "£450,000"}]}.
			if list, ok := t["displayPrices"].([]any); ok && len(list) > 0 {
				if first, ok := list[0].(map[string]any); ok {
					display = firstString(first, []string{"displayPrice", "display", "text"})
				}
			}
		}
		if display != "" {
			stub.Price = fieldutil.CleanText(display)
			if stub.PriceValue == nil {
				stub.PriceValue = fieldutil.ParsePrice(display)
			}
			if stub.PriceCurrency == "" {
				stub.PriceCurrency = fieldutil.CurrencyFromText(display)
			}
		}
	}
}

func firstValue(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func coerceID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func coerceFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

func coerceInt(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case json.Number:
		if f, err := t.Float64(); err == nil {
			n := int(f)
			return &n
		}
	case string:
		return fieldutil.ParseCount(t)
	}
	return nil
}

func coerceImages(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, el := range t {
			switch e := el.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if u := firstString(e, []string{"url", "src", "imageUrl", "href"}); u != "" {
					out = append(out, u)
				}
			}
		}
		return out
	}
	return nil
}

func coerceAgent(v any) string {
	switch t := v.(type) {
	case string:
		return fieldutil.CleanText(t)
	case map[string]any:
		return fieldutil.CleanText(firstString(t, []string{"name", "branchName", "brandName", "displayName"}))
	}
	return ""
}
