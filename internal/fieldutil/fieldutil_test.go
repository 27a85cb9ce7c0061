package fieldutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "collapses runs of whitespace", input: "  3  bed \n\t semi ", want: "3 bed semi"},
		{name: "plain text untouched", input: "Victorian terrace", want: "Victorian terrace"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{name: "pound with thousands separators", input: "£325,000", want: floatPtr(325000)},
		{name: "guide price wording", input: "Guide Price £1,250,000", want: floatPtr(1250000)},
		{name: "decimal", input: "€199,999.50", want: floatPtr(199999.5)},
		{name: "monthly rent", input: "£1,850 pcm", want: floatPtr(1850)},
		{name: "empty", input: "", want: nil},
		{name: "no number", input: "POA", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func TestCurrencyFromText(t *testing.T) {
	require.Equal(t, "GBP", CurrencyFromText("£325,000"))
	require.Equal(t, "EUR", CurrencyFromText("€200,000"))
	require.Equal(t, "USD", CurrencyFromText("$1,000"))
	require.Equal(t, "", CurrencyFromText("325000"))
}

func TestExtractPostcode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaced postcode inside address", input: "Shoreditch, London E1 6AN", want: "E1 6AN"},
		{name: "compact postcode normalized", input: "SW1A1AA", want: "SW1A 1AA"},
		{name: "lowercase input", input: "flat 2, brighton bn1 3xe", want: "BN1 3XE"},
		{name: "outcode only at end", input: "Camden, London NW1", want: "NW1"},
		{name: "no postcode shape", input: "42 Acacia Avenue, Springfield", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractPostcode(tt.input))
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{name: "relative path", base: "https://example.co.uk/search?page=2", href: "/properties/123", want: "https://example.co.uk/properties/123"},
		{name: "already absolute", base: "https://example.co.uk", href: "https://cdn.example.co.uk/img/1.jpg", want: "https://cdn.example.co.uk/img/1.jpg"},
		{name: "empty href", base: "https://example.co.uk", href: "", want: ""},
		{name: "relative without base", base: "", href: "/x", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, AbsoluteURL(tt.base, tt.href))
		})
	}
}

func TestListingIDFromURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "numeric tail segment", input: "https://example.co.uk/properties/12345678", want: "12345678"},
		{name: "numeric slug suffix", input: "https://example.co.uk/details/4-bed-detached-987654/", want: "987654"},
		{name: "slug fallback", input: "https://example.co.uk/property/rose-cottage", want: "rose-cottage"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ListingIDFromURL(tt.input))
		})
	}
}

func TestParseCount(t *testing.T) {
	require.Equal(t, 3, *ParseCount("3 bed semi-detached"))
	require.Equal(t, 2, *ParseCount("Bathrooms: 2"))
	require.Nil(t, ParseCount("studio"))
}

func TestNormalizeType(t *testing.T) {
	require.Equal(t, "Semi-Detached House", NormalizeType("  semi-detached   house "))
	require.Equal(t, "Flat", NormalizeType("FLAT"))
	require.Equal(t, "", NormalizeType(""))
}

func floatPtr(f float64) *float64 { return &f }
