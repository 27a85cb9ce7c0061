package rabbitmq

import (
	"time"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
)

// ScrapeTaskDTO is the wire shape of one scrape task message.
type ScrapeTaskDTO struct {
	TaskID       uuid.UUID `json:"task_id"`
	Name         string    `json:"name"`
	Targets      []string  `json:"targets"`
	Quota        int       `json:"quota"`
	MaxPages     int       `json:"max_pages,omitempty"`
	FetchDetails bool      `json:"fetch_details,omitempty"`
	Concurrency  int       `json:"concurrency,omitempty"`
}

// ProcessedPropertyEventDTO is the contract for the processed-properties
// queue. It matches the published JSON schema.
type ProcessedPropertyEventDTO struct {
	Property PropertyDTO `json:"property"`
	TaskID   uuid.UUID   `json:"task_id"`
}

// PropertyDTO is the contract shape of one merged listing.
type PropertyDTO struct {
	ListingID     string    `json:"listingId"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Price         string    `json:"price"`
	PriceValue    *float64  `json:"priceValue,omitempty"`
	PriceCurrency string    `json:"priceCurrency,omitempty"`
	Address       string    `json:"address,omitempty"`
	StreetAddress string    `json:"streetAddress,omitempty"`
	Locality      string    `json:"locality,omitempty"`
	Region        string    `json:"region,omitempty"`
	PostalCode    string    `json:"postalCode,omitempty"`
	Country       string    `json:"country,omitempty"`
	PropertyType  string    `json:"propertyType,omitempty"`
	Beds          *int      `json:"beds,omitempty"`
	Baths         *int      `json:"baths,omitempty"`
	FloorArea     string    `json:"floorArea,omitempty"`
	Tenure        string    `json:"tenure,omitempty"`
	Description   string    `json:"description,omitempty"`
	Features      []string  `json:"features,omitempty"`
	Images        []string  `json:"images,omitempty"`
	AgentName     string    `json:"agentName,omitempty"`
	AgentURL      string    `json:"agentUrl,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Source        string    `json:"source"`
	ScrapedAt     time.Time `json:"scrapedAt"`
}

// RunReportDTO is the wire shape of one finished-run report.
type RunReportDTO struct {
	TaskID         uuid.UUID `json:"task_id"`
	RunID          uuid.UUID `json:"run_id"`
	TaskName       string    `json:"task_name"`
	ListingsSaved  int       `json:"listings_saved"`
	PagesProcessed int       `json:"pages_processed"`
	MethodsUsed    []string  `json:"methods_used"`
	Blocked        int       `json:"blocked"`
	Errors         int       `json:"errors"`
	LikelyBlocked  bool      `json:"likely_blocked"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func toPropertyDTO(p domain.Property) PropertyDTO {
	return PropertyDTO{
		ListingID:     p.ListingID,
		URL:           p.URL,
		Title:         p.Title,
		Price:         p.Price,
		PriceValue:    p.PriceValue,
		PriceCurrency: p.PriceCurrency,
		Address:       p.Address,
		StreetAddress: p.StreetAddress,
		Locality:      p.Locality,
		Region:        p.Region,
		PostalCode:    p.PostalCode,
		Country:       p.Country,
		PropertyType:  p.PropertyType,
		Beds:          p.Beds,
		Baths:         p.Baths,
		FloorArea:     p.FloorArea,
		Tenure:        p.Tenure,
		Description:   p.Description,
		Features:      p.Features,
		Images:        p.Images,
		AgentName:     p.AgentName,
		AgentURL:      p.AgentURL,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		Source:        p.Source,
		ScrapedAt:     p.ScrapedAt,
	}
}

func toRunReportDTO(taskID uuid.UUID, s *domain.RunSummary) RunReportDTO {
	return RunReportDTO{
		TaskID:         taskID,
		RunID:          s.RunID,
		TaskName:       s.TaskName,
		ListingsSaved:  s.ListingsSaved,
		PagesProcessed: s.PagesProcessed,
		MethodsUsed:    s.MethodsUsed,
		Blocked:        s.Blocked,
		Errors:         len(s.Errors),
		LikelyBlocked:  s.LikelyBlocked,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
}

// toScrapeTask translates the wire DTO into the run configuration the
// core validates and executes.
func toScrapeTask(dto ScrapeTaskDTO) domain.ScrapeTask {
	return domain.ScrapeTask{
		Name:         dto.Name,
		Targets:      dto.Targets,
		Quota:        dto.Quota,
		MaxPages:     dto.MaxPages,
		FetchDetails: dto.FetchDetails,
		Concurrency:  dto.Concurrency,
	}
}
