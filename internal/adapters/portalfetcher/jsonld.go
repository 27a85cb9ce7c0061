package portalfetcher

import (
	"encoding/json"
	"strconv"
	"strings"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/fieldutil"
)

// listingLDTypes are the schema.org types accepted as listing entities.
var listingLDTypes = map[string]bool{
	"RealEstateListing":     true,
	"Product":               true,
	"Residence":             true,
	"Apartment":             true,
	"House":                 true,
	"SingleFamilyResidence": true,
	"ApartmentComplex":      true,
	"Offer":                 true,
	"OfferForPurchase":      true,
}

// ldEntities flattens one JSON-LD block into candidate entity maps:
// a top-level object or array, with one level of @graph unwrapping.
func ldEntities(raw string) []map[string]any {
	var root any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil
	}

	var nodes []map[string]any
	appendNode := func(v any) {
		m, ok := v.(map[string]any)
		if !ok {
			return
		}
		nodes = append(nodes, m)
		if graph, ok := m["@graph"].([]any); ok {
			for _, g := range graph {
				if gm, ok := g.(map[string]any); ok {
					nodes = append(nodes, gm)
				}
			}
		}
	}

	switch v := root.(type) {
	case map[string]any:
		appendNode(v)
	case []any:
		for _, el := range v {
			appendNode(el)
		}
	}
	return nodes
}

// ldType reads @type, which may be a string or an array of strings.
func ldType(m map[string]any) string {
	switch t := m["@type"].(type) {
	case string:
		return t
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok {
				return s
			}
		}
	}
	return ""
}

// ldListingStubs converts one JSON-LD block into search stubs.
// Handles ItemList (elements wrapped in "item" or bare), results-page
// wrappers carrying a mainEntity list, and bare listing entities.
func ldListingStubs(raw, base string) []domain.ListingStub {
	var stubs []domain.ListingStub
	for _, node := range ldEntities(raw) {
		switch t := ldType(node); {
		case t == "ItemList":
			stubs = append(stubs, ldItemListStubs(node, base)...)
		case t == "SearchResultsPage" || t == "CollectionPage":
			if main, ok := node["mainEntity"].(map[string]any); ok && ldType(main) == "ItemList" {
				stubs = append(stubs, ldItemListStubs(main, base)...)
			}
		case listingLDTypes[t]:
			if stub, ok := ldStub(node, base); ok {
				stubs = append(stubs, stub)
			}
		}
	}
	return stubs
}

func ldItemListStubs(list map[string]any, base string) []domain.ListingStub {
	elements, _ := list["itemListElement"].([]any)
	var stubs []domain.ListingStub
	for _, el := range elements {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		entity := m
		if item, ok := m["item"].(map[string]any); ok {
			entity = item
		}
		if stub, ok := ldStub(entity, base); ok {
			stubs = append(stubs, stub)
		}
	}
	return stubs
}

func ldStub(entity map[string]any, base string) (domain.ListingStub, bool) {
	stub := domain.ListingStub{Source: domain.SourceMarkup}

	stub.URL = fieldutil.AbsoluteURL(base, ldString(entity["url"]))
	if stub.URL == "" {
		if id := ldString(entity["@id"]); strings.HasPrefix(id, "http") {
			stub.URL = id
		}
	}
	stub.ListingID = ldString(entity["identifier"], entity["productID"], entity["sku"])
	stub.Title = fieldutil.CleanText(ldString(entity["name"]))

	applyLDAddress(entity["address"], &stub.Address, nil, &stub.Locality, nil, &stub.PostalCode, nil)

	price, currency, display := ldOffer(entity)
	stub.PriceValue = price
	stub.PriceCurrency = currency
	stub.Price = display

	stub.Beds = ldInt(entity["numberOfBedrooms"], entity["numberOfRooms"])
	stub.Baths = ldInt(entity["numberOfBathroomsTotal"], entity["numberOfBathrooms"])
	stub.Images = ldImages(entity["image"], base)

	if geo, ok := entity["geo"].(map[string]any); ok {
		stub.Latitude = ldFloat(geo["latitude"])
		stub.Longitude = ldFloat(geo["longitude"])
	}

	return stub, stub.Identity() != ""
}

// ldDetailRecord extracts a detail record from one JSON-LD block, or
// nil when the block holds no listing-shaped entity.
func ldDetailRecord(raw, base string) *domain.DetailRecord {
	for _, node := range ldEntities(raw) {
		if !listingLDTypes[ldType(node)] {
			continue
		}

		record := &domain.DetailRecord{}
		record.URL = fieldutil.AbsoluteURL(base, ldString(node["url"]))
		record.ListingID = ldString(node["identifier"], node["productID"], node["sku"])
		record.Title = fieldutil.CleanText(ldString(node["name"]))
		record.Description = fieldutil.CleanText(ldString(node["description"]))

		applyLDAddress(node["address"],
			&record.Address, &record.StreetAddress, &record.Locality,
			&record.Region, &record.PostalCode, &record.Country)

		price, currency, display := ldOffer(node)
		record.PriceValue = price
		record.PriceCurrency = currency
		record.Price = display

		record.Beds = ldInt(node["numberOfBedrooms"], node["numberOfRooms"])
		record.Baths = ldInt(node["numberOfBathroomsTotal"], node["numberOfBathrooms"])
		record.Images = ldImages(node["image"], base)
		record.FloorArea = ldFloorArea(node["floorSize"])

		for _, key := range []string{"agent", "seller", "provider", "brand"} {
			if actor, ok := node[key].(map[string]any); ok {
				record.AgentName = fieldutil.CleanText(ldString(actor["name"]))
				record.AgentURL = fieldutil.AbsoluteURL(base, ldString(actor["url"]))
				break
			}
		}

		if geo, ok := node["geo"].(map[string]any); ok {
			record.Latitude = ldFloat(geo["latitude"])
			record.Longitude = ldFloat(geo["longitude"])
		}

		if record.URL != "" || record.Title != "" || record.Description != "" {
			return record
		}
	}
	return nil
}

// applyLDAddress accepts a plain string or a schema.org PostalAddress
// object. Destination pointers may be nil when the caller has no slot
// for that part.
func applyLDAddress(v any, full, street, locality, region, postcode, country *string) {
	set := func(dst *string, value string) {
		if dst != nil && value != "" {
			*dst = value
		}
	}

	switch addr := v.(type) {
	case string:
		set(full, fieldutil.CleanText(addr))
	case map[string]any:
		streetVal := fieldutil.CleanText(ldString(addr["streetAddress"]))
		localityVal := fieldutil.CleanText(ldString(addr["addressLocality"]))
		regionVal := fieldutil.CleanText(ldString(addr["addressRegion"]))
		postcodeVal := fieldutil.ExtractPostcode(ldString(addr["postalCode"]))
		countryVal := fieldutil.CleanText(ldString(addr["addressCountry"]))

		set(street, streetVal)
		set(locality, localityVal)
		set(region, regionVal)
		set(postcode, postcodeVal)
		set(country, countryVal)

		parts := make([]string, 0, 4)
		for _, p := range []string{streetVal, localityVal, regionVal, postcodeVal} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		set(full, strings.Join(parts, ", "))
	}
}

// ldOffer reads offers.price from an Offer object/array or from a
// price key on the entity itself.
func ldOffer(entity map[string]any) (*float64, string, string) {
	offer := entity
	switch o := entity["offers"].(type) {
	case map[string]any:
		offer = o
	case []any:
		if len(o) > 0 {
			if m, ok := o[0].(map[string]any); ok {
				offer = m
			}
		}
	}

	var display string
	var value *float64
	switch p := offer["price"].(type) {
	case string:
		display = fieldutil.CleanText(p)
		value = fieldutil.ParsePrice(p)
	case float64:
		v := p
		value = &v
	}
	currency := ldString(offer["priceCurrency"])
	if currency == "" && display != "" {
		currency = fieldutil.CurrencyFromText(display)
	}
	return value, currency, display
}

func ldImages(v any, base string) []string {
	var out []string
	appendImage := func(raw string) {
		if u := fieldutil.AbsoluteURL(base, raw); u != "" {
			out = append(out, u)
		}
	}

	switch img := v.(type) {
	case string:
		appendImage(img)
	case map[string]any:
		appendImage(ldString(img["url"], img["contentUrl"]))
	case []any:
		for _, el := range img {
			switch e := el.(type) {
			case string:
				appendImage(e)
			case map[string]any:
				appendImage(ldString(e["url"], e["contentUrl"]))
			}
		}
	}
	return out
}

func ldFloorArea(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	value := ldString(m["value"])
	if value == "" {
		if f, ok := m["value"].(float64); ok {
			value = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if value == "" {
		return ""
	}
	unit := ldString(m["unitText"], m["unitCode"])
	if unit == "" {
		return value
	}
	return value + " " + unit
}

// ldString returns the first value that is a non-empty string.
func ldString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func ldFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		return fieldutil.ParsePrice(t)
	}
	return nil
}

func ldInt(values ...any) *int {
	for _, v := range values {
		switch t := v.(type) {
		case float64:
			n := int(t)
			return &n
		case string:
			if n := fieldutil.ParseCount(t); n != nil {
				return n
			}
		}
	}
	return nil
}
