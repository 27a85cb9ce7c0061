// Package merge reconciles a search stub with an optional detail
// record into the canonical Property handed to sinks.
package merge

import (
	"time"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/fieldutil"
)

// Merge combines stub and detail by field precedence: the detail
// value wins when present, the stub value otherwise. Price and
// postcode cascade further (see pickPriceValue and the postcode
// fallback below). Identity runs the other way, stub id first, and
// always resolves to something non-empty when a URL exists.
func Merge(stub domain.ListingStub, detail *domain.DetailRecord, scrapedAt time.Time) domain.Property {
	if detail == nil {
		detail = &domain.DetailRecord{}
	}

	url := pickString(detail.URL, stub.URL)
	address := pickString(detail.Address, stub.Address)
	priceText := pickString(detail.Price, stub.Price)

	property := domain.Property{
		ListingID: pickString(stub.ListingID, detail.ListingID, fieldutil.ListingIDFromURL(url), url),
		URL:       url,
		Title:     pickString(detail.Title, stub.Title),

		Price:         priceText,
		PriceValue:    pickPriceValue(detail.PriceValue, stub.PriceValue, priceText),
		PriceCurrency: pickString(detail.PriceCurrency, stub.PriceCurrency, fieldutil.CurrencyFromText(priceText)),

		Address:       address,
		StreetAddress: detail.StreetAddress,
		Locality:      pickString(detail.Locality, stub.Locality),
		Region:        detail.Region,
		PostalCode:    pickString(detail.PostalCode, stub.PostalCode),
		Country:       detail.Country,

		PropertyType: pickString(detail.PropertyType, stub.PropertyType),
		Beds:         pickInt(detail.Beds, stub.Beds),
		Baths:        pickInt(detail.Baths, stub.Baths),
		FloorArea:    detail.FloorArea,
		Tenure:       detail.Tenure,
		Description:  detail.Description,
		Features:     detail.Features,

		Images:    pickStrings(detail.Images, stub.Images),
		AgentName: pickString(detail.AgentName, stub.AgentName),
		AgentURL:  detail.AgentURL,

		Latitude:  pickFloat(detail.Latitude, stub.Latitude),
		Longitude: pickFloat(detail.Longitude, stub.Longitude),

		Source:    stub.Source,
		ScrapedAt: scrapedAt,
	}

	if property.PostalCode == "" {
		property.PostalCode = fieldutil.ExtractPostcode(pickString(address, detail.StreetAddress))
	}

	return property
}

// pickPriceValue resolves the numeric price: detail's parsed value,
// then the stub's, then a parse of the chosen display text.
func pickPriceValue(detailValue, stubValue *float64, priceText string) *float64 {
	if v := pickFloat(detailValue, stubValue); v != nil {
		return v
	}
	return fieldutil.ParsePrice(priceText)
}

func pickString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func pickFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func pickStrings(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
