package usecases_port

import (
	"context"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
)

type OrchestrateScrapePort interface {
	Execute(ctx context.Context, task domain.ScrapeTask, taskID uuid.UUID) (*domain.RunSummary, error)
}
