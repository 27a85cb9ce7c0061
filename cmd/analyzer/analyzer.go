// Command analyzer audits captured portal API payloads. It runs the
// same listing discovery the api strategy uses, reports how well each
// stub field is covered, and lists the raw payload keys with sample
// values so new field synonyms can be picked by eye.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/extract/apijson"
)

type fieldStat struct {
	name        string
	count       int
	valueCounts map[string]int
}

type auditReport struct {
	filesFound    int
	filesParsed   int
	stubsFound    int
	fillCounts    map[string]int
	rawFieldStats map[string]*fieldStat
}

func main() {
	globPattern := flag.String("glob", "payload_dumps/*.json", "glob of captured payload files")
	outPath := flag.String("out", "", "report file; empty writes to stdout")
	sampleLimit := flag.Int("samples", 5, "sample values listed per raw key")
	flag.Parse()

	files, err := filepath.Glob(*globPattern)
	if err != nil {
		log.Fatalf("Bad glob pattern %q: %v", *globPattern, err)
	}
	if len(files) == 0 {
		log.Fatalf("No payload files match %q", *globPattern)
	}

	report := &auditReport{
		filesFound:    len(files),
		fillCounts:    make(map[string]int),
		rawFieldStats: make(map[string]*fieldStat),
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Printf("Skipping %s: %v", file, err)
			continue
		}

		var payload any
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("Skipping %s: not valid JSON: %v", file, err)
			continue
		}
		report.filesParsed++

		stubs := apijson.FindListings(payload, domain.SourceAPI)
		report.stubsFound += len(stubs)
		for _, stub := range stubs {
			countFilledFields(stub, report.fillCounts)
		}

		collectRawStats(payload, "", report.rawFieldStats)
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("Cannot create report file: %v", err)
		}
		defer f.Close()
		out = f
	}

	printReport(out, report, *sampleLimit)
	if *outPath != "" {
		fmt.Printf("Audit finished. Report written to %s\n", *outPath)
	}
}

// countFilledFields bumps the per-field counter for every stub field
// the discovery managed to populate.
func countFilledFields(stub domain.ListingStub, counts map[string]int) {
	bump := func(name string, filled bool) {
		if filled {
			counts[name]++
		}
	}
	bump("listingId", stub.ListingID != "")
	bump("url", stub.URL != "")
	bump("title", stub.Title != "")
	bump("address", stub.Address != "")
	bump("locality", stub.Locality != "")
	bump("postalCode", stub.PostalCode != "")
	bump("price", stub.Price != "")
	bump("priceValue", stub.PriceValue != nil)
	bump("priceCurrency", stub.PriceCurrency != "")
	bump("beds", stub.Beds != nil)
	bump("baths", stub.Baths != nil)
	bump("propertyType", stub.PropertyType != "")
	bump("images", len(stub.Images) > 0)
	bump("agentName", stub.AgentName != "")
	bump("latitude", stub.Latitude != nil)
	bump("longitude", stub.Longitude != nil)
}

// collectRawStats walks the payload and counts every non-null key,
// keeping a sample of its values.
func collectRawStats(node any, prefix string, stats map[string]*fieldStat) {
	dataMap, ok := node.(map[string]any)
	if !ok {
		if items, ok := node.([]any); ok {
			for _, item := range items {
				collectRawStats(item, prefix, stats)
			}
		}
		return
	}

	for key, value := range dataMap {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if value == nil {
			continue
		}

		if _, exists := stats[fullKey]; !exists {
			stats[fullKey] = &fieldStat{
				name:        fullKey,
				valueCounts: make(map[string]int),
			}
		}
		stat := stats[fullKey]
		stat.count++
		stat.valueCounts[valueToString(value)]++

		switch v := value.(type) {
		case map[string]any:
			collectRawStats(v, fullKey, stats)
		case []any:
			for _, item := range v {
				if subMap, ok := item.(map[string]any); ok {
					collectRawStats(subMap, fullKey+"[]", stats)
				}
			}
		}
	}
}

// valueToString renders any JSON value compactly for the sample list.
func valueToString(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 70 {
			return `"` + val[:70] + `..."`
		}
		return `"` + val + `"`
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		return fmt.Sprintf("[array of %d]", len(val))
	case map[string]any:
		return "{object}"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func printReport(w io.Writer, report *auditReport, sampleLimit int) {
	fmt.Fprintln(w, "--- Portal payload audit ---")
	fmt.Fprintf(w, "Files matched: %d, parsed: %d, stubs discovered: %d\n",
		report.filesFound, report.filesParsed, report.stubsFound)

	if report.stubsFound > 0 {
		fmt.Fprintln(w, "\n=== Stub field coverage ===")
		type coverage struct {
			name  string
			count int
		}
		covered := make([]coverage, 0, len(report.fillCounts))
		for name, count := range report.fillCounts {
			covered = append(covered, coverage{name, count})
		}
		sort.Slice(covered, func(i, j int) bool {
			if covered[i].count == covered[j].count {
				return covered[i].name < covered[j].name
			}
			return covered[i].count > covered[j].count
		})
		for _, c := range covered {
			pct := float64(c.count) / float64(report.stubsFound) * 100.0
			fmt.Fprintf(w, "  %-16s %6.2f%% (%d/%d)\n", c.name, pct, c.count, report.stubsFound)
		}
	}

	fmt.Fprintln(w, "\n=== Raw payload keys ===")
	sortedFields := make([]*fieldStat, 0, len(report.rawFieldStats))
	for _, stat := range report.rawFieldStats {
		sortedFields = append(sortedFields, stat)
	}
	sort.Slice(sortedFields, func(i, j int) bool {
		if sortedFields[i].count == sortedFields[j].count {
			return sortedFields[i].name < sortedFields[j].name
		}
		return sortedFields[i].count > sortedFields[j].count
	})

	type valueStat struct {
		value string
		count int
	}
	for _, field := range sortedFields {
		fmt.Fprintf(w, "\n--- %-40s | seen %d times ---\n", "'"+field.name+"'", field.count)

		sortedValues := make([]valueStat, 0, len(field.valueCounts))
		for val, count := range field.valueCounts {
			sortedValues = append(sortedValues, valueStat{val, count})
		}
		sort.Slice(sortedValues, func(i, j int) bool {
			if sortedValues[i].count == sortedValues[j].count {
				return sortedValues[i].value < sortedValues[j].value
			}
			return sortedValues[i].count > sortedValues[j].count
		})

		for i, vs := range sortedValues {
			if i >= sampleLimit {
				fmt.Fprintf(w, "    ... and %d more distinct values\n", len(sortedValues)-sampleLimit)
				break
			}
			fmt.Fprintf(w, "    - %-60s | %d\n", vs.value, vs.count)
		}
	}
}
