package rest

import (
	"time"

	"estate-parser-service/internal/core/domain"
)

// HealthResponseDTO is the body of GET /api/v1/health.
type HealthResponseDTO struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// RunSummaryResponseDTO is the body of GET /api/v1/runs/latest.
type RunSummaryResponseDTO struct {
	RunID          string           `json:"run_id"`
	TaskName       string           `json:"task_name"`
	ListingsSaved  int              `json:"listings_saved"`
	PagesProcessed int              `json:"pages_processed"`
	MethodsUsed    []string         `json:"methods_used"`
	Blocked        int              `json:"blocked"`
	LikelyBlocked  bool             `json:"likely_blocked"`
	Errors         []ScrapeErrorDTO `json:"errors"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

type ScrapeErrorDTO struct {
	OccurredAt time.Time `json:"occurred_at"`
	Strategy   string    `json:"strategy"`
	Target     string    `json:"target"`
	Page       int       `json:"page"`
	Message    string    `json:"message"`
}

type BlockEventDTO struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BlocksResponseDTO is the body of GET /api/v1/blocks: the block
// activity the most recent completed run observed.
type BlocksResponseDTO struct {
	RunID         string          `json:"run_id"`
	Blocked       int             `json:"blocked"`
	LikelyBlocked bool            `json:"likely_blocked"`
	Events        []BlockEventDTO `json:"events"`
	FinishedAt    time.Time       `json:"finished_at"`
}

func toRunSummaryDTO(summary *domain.RunSummary) RunSummaryResponseDTO {
	scrapeErrors := make([]ScrapeErrorDTO, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		scrapeErrors = append(scrapeErrors, ScrapeErrorDTO{
			OccurredAt: e.OccurredAt,
			Strategy:   e.Strategy,
			Target:     e.Target,
			Page:       e.Page,
			Message:    e.Message,
		})
	}
	return RunSummaryResponseDTO{
		RunID:          summary.RunID.String(),
		TaskName:       summary.TaskName,
		ListingsSaved:  summary.ListingsSaved,
		PagesProcessed: summary.PagesProcessed,
		MethodsUsed:    summary.MethodsUsed,
		Blocked:        summary.Blocked,
		LikelyBlocked:  summary.LikelyBlocked,
		Errors:         scrapeErrors,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
	}
}

func toBlocksDTO(summary *domain.RunSummary) BlocksResponseDTO {
	events := make([]BlockEventDTO, 0, len(summary.BlockEvents))
	for _, e := range summary.BlockEvents {
		events = append(events, BlockEventDTO{
			URL:        e.URL,
			StatusCode: e.StatusCode,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt,
		})
	}
	return BlocksResponseDTO{
		RunID:         summary.RunID.String(),
		Blocked:       summary.Blocked,
		LikelyBlocked: summary.LikelyBlocked,
		Events:        events,
		FinishedAt:    summary.FinishedAt,
	}
}
