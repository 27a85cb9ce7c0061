package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRunRepository persists finished run summaries and serves
// them back to the ops surface. It implements RunReporterPort on the
// write side and RunHistoryPort on the read side.
type PostgresRunRepository struct {
	dbPool *pgxpool.Pool
}

// NewPostgresRunRepository creates a new run repository over the given pool.
func NewPostgresRunRepository(dbPool *pgxpool.Pool) (*PostgresRunRepository, error) {
	if dbPool == nil {
		return nil, fmt.Errorf("postgres run repository: dbPool cannot be nil")
	}
	return &PostgresRunRepository{dbPool: dbPool}, nil
}

// ReportRun inserts one summary row. run_id is the primary key, so a
// re-delivered report of the same run is a no-op.
func (r *PostgresRunRepository) ReportRun(ctx context.Context, taskID uuid.UUID, summary *domain.RunSummary) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRunRepository",
		"method":    "ReportRun",
	})

	if summary == nil {
		return fmt.Errorf("postgres run repository: summary cannot be nil")
	}

	blockEvents, err := json.Marshal(summary.BlockEvents)
	if err != nil {
		return fmt.Errorf("postgres run repository: marshaling block events for run %s: %w", summary.RunID, err)
	}
	scrapeErrors, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("postgres run repository: marshaling errors for run %s: %w", summary.RunID, err)
	}

	query := `
        INSERT INTO scrape_runs (
            run_id, task_id, task_name, listings_saved, pages_processed,
            methods_used, blocked, block_events, errors, likely_blocked,
            started_at, finished_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (run_id) DO NOTHING
    `

	repoLogger.Debug("Persisting run summary", port.Fields{
		"run_id":         summary.RunID,
		"listings_saved": summary.ListingsSaved,
	})

	_, err = r.dbPool.Exec(ctx, query,
		summary.RunID, taskID, summary.TaskName, summary.ListingsSaved, summary.PagesProcessed,
		summary.MethodsUsed, summary.Blocked, blockEvents, scrapeErrors, summary.LikelyBlocked,
		summary.StartedAt, summary.FinishedAt,
	)
	if err != nil {
		repoLogger.Error("Failed to persist run summary", err, port.Fields{"run_id": summary.RunID})
		return fmt.Errorf("postgres run repository: persisting run %s: %w", summary.RunID, err)
	}

	repoLogger.Debug("Persisted run summary", port.Fields{"run_id": summary.RunID})
	return nil
}

// LatestRun returns the most recently finished run, or (nil, nil)
// when nothing has been recorded yet.
func (r *PostgresRunRepository) LatestRun(ctx context.Context) (*domain.RunSummary, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRunRepository",
		"method":    "LatestRun",
	})

	query := `
        SELECT run_id, task_name, listings_saved, pages_processed,
               methods_used, blocked, block_events, errors, likely_blocked,
               started_at, finished_at
        FROM scrape_runs
        ORDER BY finished_at DESC
        LIMIT 1
    `

	var summary domain.RunSummary
	var blockEvents, scrapeErrors []byte
	err := r.dbPool.QueryRow(ctx, query).Scan(
		&summary.RunID, &summary.TaskName, &summary.ListingsSaved, &summary.PagesProcessed,
		&summary.MethodsUsed, &summary.Blocked, &blockEvents, &scrapeErrors, &summary.LikelyBlocked,
		&summary.StartedAt, &summary.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			repoLogger.Warn("No completed runs recorded yet", nil)
			return nil, nil
		}
		repoLogger.Error("Failed to query latest run", err, nil)
		return nil, fmt.Errorf("postgres run repository: querying latest run: %w", err)
	}

	if len(blockEvents) > 0 {
		if err := json.Unmarshal(blockEvents, &summary.BlockEvents); err != nil {
			return nil, fmt.Errorf("postgres run repository: unmarshaling block events for run %s: %w", summary.RunID, err)
		}
	}
	if len(scrapeErrors) > 0 {
		if err := json.Unmarshal(scrapeErrors, &summary.Errors); err != nil {
			return nil, fmt.Errorf("postgres run repository: unmarshaling errors for run %s: %w", summary.RunID, err)
		}
	}

	repoLogger.Debug("Found latest run", port.Fields{"run_id": summary.RunID})
	return &summary, nil
}

// CREATE TABLE IF NOT EXISTS scrape_runs (
//     run_id UUID PRIMARY KEY,
//     task_id UUID NOT NULL,
//     task_name TEXT NOT NULL,
//     listings_saved INTEGER NOT NULL,
//     pages_processed INTEGER NOT NULL,
//     methods_used TEXT[] NOT NULL DEFAULT '{}',
//     blocked INTEGER NOT NULL,
//     block_events JSONB,
//     errors JSONB,
//     likely_blocked BOOLEAN NOT NULL,
//     started_at TIMESTAMPTZ NOT NULL,
//     finished_at TIMESTAMPTZ NOT NULL
// );

// CREATE INDEX IF NOT EXISTS idx_scrape_runs_finished_at ON scrape_runs(finished_at DESC);
