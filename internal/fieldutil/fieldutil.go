package fieldutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	priceRegex      = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	countRegex      = regexp.MustCompile(`\d+`)

	// UK postcode shapes, tried in order: full postcode with a space,
	// full postcode without a space, outcode alone at the end of the text.
	postcodeSpacedRegex   = regexp.MustCompile(`(?i)\b([A-Z]{1,2}[0-9][A-Z0-9]?)\s+([0-9][A-Z]{2})\b`)
	postcodeCompactRegex  = regexp.MustCompile(`(?i)\b([A-Z]{1,2}[0-9][A-Z0-9]?)([0-9][A-Z]{2})\b`)
	postcodeOutcodeRegex  = regexp.MustCompile(`(?i)\b([A-Z]{1,2}[0-9][A-Z0-9]?)\s*$`)
	listingIDNumericRegex = regexp.MustCompile(`(?:^|[-_/])(\d{4,})(?:[/.?#]|$)`)

	typeCaser = cases.Title(language.BritishEnglish)
)

// CleanText collapses internal whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// AbsoluteURL resolves href against base. A href that is already
// absolute is returned cleaned; anything unparseable returns "".
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// ParsePrice extracts the first number from a price display text,
// ignoring currency symbols and thousands separators.
// "£325,000" yields 325000; text with no number yields nil.
func ParsePrice(s string) *float64 {
	match := priceRegex.FindString(s)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

// CurrencyFromText guesses the currency code from a price display text.
func CurrencyFromText(s string) string {
	switch {
	case strings.Contains(s, "£"):
		return "GBP"
	case strings.Contains(s, "€"):
		return "EUR"
	case strings.Contains(s, "$"):
		return "USD"
	}
	return ""
}

// ParseCount extracts the first integer from text like "3 bed semi".
func ParseCount(s string) *int {
	match := countRegex.FindString(s)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}

// ExtractPostcode finds a UK-postcode-shaped substring and returns it
// in the normalized "OUTCODE INCODE" form. Returns "" when the text
// contains nothing postcode-shaped.
func ExtractPostcode(s string) string {
	if s == "" {
		return ""
	}
	if m := postcodeSpacedRegex.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1] + " " + m[2])
	}
	if m := postcodeCompactRegex.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1] + " " + m[2])
	}
	if m := postcodeOutcodeRegex.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		// An outcode alone is only trusted at the end of an address,
		// where "..., London SW1A" conventionally leaves the incode off.
		return strings.ToUpper(m[1])
	}
	return ""
}

// ListingIDFromURL derives a stable identifier from a listing URL:
// the last long numeric path token when present, else the final path
// segment, else "".
func ListingIDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")

	matches := listingIDNumericRegex.FindAllStringSubmatch(path, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1][1]
	}

	if idx := strings.LastIndex(path, "/"); idx >= 0 && idx+1 < len(path) {
		return path[idx+1:]
	}
	return ""
}

// NormalizeType standardizes a property-type label ("semi-detached
// house" becomes "Semi-Detached House").
func NormalizeType(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	return typeCaser.String(strings.ToLower(s))
}
