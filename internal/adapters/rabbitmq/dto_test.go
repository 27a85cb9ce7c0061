package rabbitmq

import (
	"testing"
	"time"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestToRunReportDTOFlattensSummary(t *testing.T) {
	taskID := uuid.New()
	runID := uuid.New()
	started := time.Date(2025, 11, 3, 2, 0, 0, 0, time.UTC)

	summary := &domain.RunSummary{
		RunID:          runID,
		TaskName:       "nightly-bow",
		ListingsSaved:  12,
		PagesProcessed: 4,
		MethodsUsed:    []string{"api", "markup"},
		Blocked:        2,
		Errors: []domain.ScrapeError{
			{Strategy: "markup", Page: 2, Message: "status 500"},
		},
		StartedAt:     started,
		FinishedAt:    started.Add(90 * time.Second),
		LikelyBlocked: false,
	}

	dto := toRunReportDTO(taskID, summary)

	require.Equal(t, taskID, dto.TaskID)
	require.Equal(t, runID, dto.RunID)
	require.Equal(t, "nightly-bow", dto.TaskName)
	require.Equal(t, 12, dto.ListingsSaved)
	require.Equal(t, 4, dto.PagesProcessed)
	require.Equal(t, []string{"api", "markup"}, dto.MethodsUsed)
	require.Equal(t, 2, dto.Blocked)
	require.Equal(t, 1, dto.Errors)
	require.False(t, dto.LikelyBlocked)
	require.Equal(t, started, dto.StartedAt)
}

func TestToScrapeTaskDropsWireOnlyFields(t *testing.T) {
	dto := ScrapeTaskDTO{
		TaskID:  uuid.New(),
		Name:    "weekly",
		Targets: []string{"https://portal.example/search"},
		Quota:   10,
	}

	task := toScrapeTask(dto)

	require.Equal(t, "weekly", task.Name)
	require.Equal(t, dto.Targets, task.Targets)
	require.Equal(t, 10, task.Quota)
	require.Zero(t, task.MaxPages)
	require.Zero(t, task.Concurrency)
	require.NoError(t, task.Validate())
}
