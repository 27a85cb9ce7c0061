package port

import (
	"context"

	"estate-parser-service/internal/core/domain"
)

// RunHistoryPort reads back run summaries recorded by a reporter.
// LatestRun returns (nil, nil) when no run has finished yet.
type RunHistoryPort interface {
	LatestRun(ctx context.Context) (*domain.RunSummary, error)
}
