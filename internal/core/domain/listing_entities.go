package domain

import "time"

// Source values identify which retrieval strategy produced a stub.
const (
	SourceAPI     = "api"
	SourceMarkup  = "markup"
	SourceDOM     = "dom"
	SourceSitemap = "sitemap"
)

// ListingStub is the partial record a search-result extractor produces.
// Every field is optional; absence is a value, not an error.
type ListingStub struct {
	ListingID     string
	URL           string
	Title         string
	Address       string
	Locality      string
	PostalCode    string
	Price         string // display text, e.g. "£325,000"
	PriceValue    *float64
	PriceCurrency string
	Beds          *int
	Baths         *int
	PropertyType  string
	Images        []string
	AgentName     string
	Latitude      *float64
	Longitude     *float64
	Source        string
}

// Identity returns the deduplication key: listing id when known, else URL.
// Empty string means the stub carries no usable identity at all.
func (s ListingStub) Identity() string {
	if s.ListingID != "" {
		return s.ListingID
	}
	return s.URL
}

// DetailRecord is the full record fetched from an individual listing page.
type DetailRecord struct {
	ListingID     string
	URL           string
	Title         string
	Address       string
	StreetAddress string
	Locality      string
	Region        string
	PostalCode    string
	Country       string
	Price         string
	PriceValue    *float64
	PriceCurrency string
	Beds          *int
	Baths         *int
	PropertyType  string
	FloorArea     string
	Tenure        string
	Description   string
	Features      []string
	Images        []string
	AgentName     string
	AgentURL      string
	Latitude      *float64
	Longitude     *float64
}

// Property is the canonical merged entity handed to the sinks.
// Exactly one Property is emitted per identity within a run.
type Property struct {
	ListingID     string    `json:"listingId"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	PriceValue    *float64  `json:"priceValue"`
	PriceCurrency string    `json:"priceCurrency"`
	Address       string    `json:"address"`
	StreetAddress string    `json:"streetAddress"`
	Locality      string    `json:"locality"`
	Region        string    `json:"region"`
	PostalCode    string    `json:"postalCode"`
	Country       string    `json:"country"`
	PropertyType  string    `json:"propertyType"`
	Beds          *int      `json:"beds"`
	Baths         *int      `json:"baths"`
	FloorArea     string    `json:"floorArea"`
	Tenure        string    `json:"tenure"`
	Description   string    `json:"description"`
	Features      []string  `json:"features"`
	Images        []string  `json:"images"`
	AgentName     string    `json:"agentName"`
	AgentURL      string    `json:"agentUrl"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	Source        string    `json:"source"`
	ScrapedAt     time.Time `json:"scrapedAt"`
}

// Identity returns the deduplication key the property was admitted
// under: listing id when known, else URL. It is never empty for a
// property that passed the registry.
func (p Property) Identity() string {
	if p.ListingID != "" {
		return p.ListingID
	}
	return p.URL
}
