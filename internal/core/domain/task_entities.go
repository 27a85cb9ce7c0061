package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScrapeTask is the run configuration for one orchestrated scrape.
type ScrapeTask struct {
	Name         string
	Targets      []string // search-result URLs, one per target surface
	Quota        int      // stop once this many properties were emitted
	MaxPages     int      // per target, per strategy
	FetchDetails bool     // enrich each stub with a detail-page fetch
	Concurrency  int      // bounded parallelism for per-listing tasks
}

// Validate reports configuration errors. These are the only fatal
// errors in a run: nothing is fetched when Validate fails.
func (t ScrapeTask) Validate() error {
	if len(t.Targets) == 0 {
		return fmt.Errorf("scrape task '%s': at least one target URL is required", t.Name)
	}
	if t.Quota <= 0 {
		return fmt.Errorf("scrape task '%s': quota must be a positive number, got %d", t.Name, t.Quota)
	}
	return nil
}

// ScrapeError is one recoverable failure recorded during a run.
type ScrapeError struct {
	OccurredAt time.Time `json:"occurredAt"`
	Strategy   string    `json:"strategy"`
	Target     string    `json:"target"`
	Page       int       `json:"page"`
	Message    string    `json:"message"`
}

// RunSummary is the diagnostic result of one completed run.
type RunSummary struct {
	RunID          uuid.UUID     `json:"runId"`
	TaskName       string        `json:"taskName"`
	ListingsSaved  int           `json:"listingsSaved"`
	PagesProcessed int           `json:"pagesProcessed"`
	MethodsUsed    []string      `json:"methodsUsed"`
	Blocked        int           `json:"blocked"`
	BlockEvents    []BlockEvent  `json:"blockEvents"`
	Errors         []ScrapeError `json:"errors"`
	StartedAt      time.Time     `json:"startedAt"`
	FinishedAt     time.Time     `json:"finishedAt"`

	// LikelyBlocked distinguishes anti-bot blocking from genuinely
	// empty results: nothing saved and at least one block observed.
	LikelyBlocked bool `json:"likelyBlocked"`
}
