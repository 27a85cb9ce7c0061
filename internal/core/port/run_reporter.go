package port

import (
	"context"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
)

// RunReporterPort delivers the summary of a finished run.
type RunReporterPort interface {
	ReportRun(ctx context.Context, taskID uuid.UUID, summary *domain.RunSummary) error
}
