package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"estate-parser-service/internal/blockwatch"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/internal/dedupe"
	"estate-parser-service/internal/merge"
	"estate-parser-service/pkg/workerpool"
)

const (
	defaultMaxPages    = 5
	defaultConcurrency = 4
)

// OrchestrateScrapeUseCase drives one full scrape run: per target it
// tries the search strategies in their fixed order, schedules every
// new listing onto the worker pool and stops once the quota is met.
type OrchestrateScrapeUseCase struct {
	strategies    []port.SearchStrategyPort
	detailFetcher port.DetailFetcherPort
	sink          port.PropertySinkPort
}

// NewOrchestrateScrapeUseCase creates a new instance of the use case.
func NewOrchestrateScrapeUseCase(
	strategies []port.SearchStrategyPort,
	detailFetcher port.DetailFetcherPort,
	sink port.PropertySinkPort,
) *OrchestrateScrapeUseCase {
	return &OrchestrateScrapeUseCase{
		strategies:    strategies,
		detailFetcher: detailFetcher,
		sink:          sink,
	}
}

// Execute runs the task to completion and returns its summary. Only a
// configuration error is fatal; everything that goes wrong during the
// run is recorded in the summary instead.
func (uc *OrchestrateScrapeUseCase) Execute(ctx context.Context, task domain.ScrapeTask, taskID uuid.UUID) (*domain.RunSummary, error) {
	baseLogger := contextkeys.LoggerFromContext(ctx)
	ucLogger := baseLogger.WithFields(port.Fields{
		"use_case": "OrchestrateScrape",
		"task":     task.Name,
	})

	if err := task.Validate(); err != nil {
		return nil, err
	}

	maxPages := task.MaxPages
	if maxPages < 1 {
		maxPages = defaultMaxPages
	}
	concurrency := task.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	state := newRunState()
	registry := dedupe.NewRegistry()
	pool := workerpool.New(concurrency, concurrency*2)

	startedAt := time.Now().UTC()
	ucLogger.Info("Run started", port.Fields{
		"targets": len(task.Targets),
		"quota":   task.Quota,
	})

	for _, target := range task.Targets {
		if state.quotaReached(task.Quota) || ctx.Err() != nil {
			break
		}
		uc.scrapeTarget(ctx, ucLogger, task, taskID, target, maxPages, state, registry, pool)
	}

	pool.Close()

	summary := state.summary(taskID, task.Name, startedAt, time.Now().UTC())
	ucLogger.Info("Run finished", port.Fields{
		"saved":   summary.ListingsSaved,
		"pages":   summary.PagesProcessed,
		"methods": summary.MethodsUsed,
		"blocked": summary.Blocked,
		"errors":  len(summary.Errors),
	})
	return summary, nil
}

// scrapeTarget walks the strategy chain for one target. Each strategy
// only runs while the quota is still open.
func (uc *OrchestrateScrapeUseCase) scrapeTarget(
	ctx context.Context,
	logger port.LoggerPort,
	task domain.ScrapeTask,
	taskID uuid.UUID,
	target string,
	maxPages int,
	state *runState,
	registry *dedupe.Registry,
	pool *workerpool.Pool,
) {
	for _, strategy := range uc.strategies {
		if state.quotaReached(task.Quota) || ctx.Err() != nil {
			return
		}
		uc.runStrategy(ctx, logger, task, taskID, target, strategy, maxPages, state, registry, pool)
	}
}

// runStrategy pages through one strategy for one target. Pages are
// sequential; the listings of a page are processed in parallel and
// awaited before the next page is fetched.
func (uc *OrchestrateScrapeUseCase) runStrategy(
	ctx context.Context,
	logger port.LoggerPort,
	task domain.ScrapeTask,
	taskID uuid.UUID,
	target string,
	strategy port.SearchStrategyPort,
	maxPages int,
	state *runState,
	registry *dedupe.Registry,
	pool *workerpool.Pool,
) {
	stratLogger := logger.WithFields(port.Fields{
		"strategy": strategy.Name(),
		"target":   target,
	})

	for page := 1; page <= maxPages; page++ {
		if state.quotaReached(task.Quota) || ctx.Err() != nil {
			return
		}

		stubs, err := strategy.FetchPage(ctx, target, page)
		if err != nil {
			var blocked *blockwatch.BlockedError
			if errors.As(err, &blocked) {
				state.recordBlock(blocked)
				stratLogger.Warn("Fetch blocked", port.Fields{
					"page":   page,
					"status": blocked.StatusCode,
					"reason": blocked.Reason,
				})
			} else {
				state.recordError(strategy.Name(), target, page, err)
				stratLogger.Error("Page fetch failed", err, port.Fields{"page": page})
			}
			return
		}

		state.pageProcessed()

		if len(stubs) == 0 {
			stratLogger.Debug("Strategy exhausted", port.Fields{"page": page})
			return
		}

		var batch sync.WaitGroup
		scheduled := 0
		for _, stub := range stubs {
			if state.quotaReached(task.Quota) {
				break
			}
			if !registry.Admit(stub.Identity()) {
				continue
			}
			stub := stub
			batch.Add(1)
			scheduled++
			pool.Submit(func() {
				defer batch.Done()
				uc.processStub(ctx, stratLogger, task, taskID, strategy.Name(), stub, state)
			})
		}
		batch.Wait()

		stratLogger.Debug("Page done", port.Fields{
			"page":      page,
			"stubs":     len(stubs),
			"scheduled": scheduled,
		})
	}
}

// processStub is the body of one scheduled listing task: optional
// detail fetch, merge, emit. A failed detail fetch degrades to a
// stub-only merge; a failed emit only costs this one listing.
func (uc *OrchestrateScrapeUseCase) processStub(
	ctx context.Context,
	logger port.LoggerPort,
	task domain.ScrapeTask,
	taskID uuid.UUID,
	strategyName string,
	stub domain.ListingStub,
	state *runState,
) {
	if state.quotaReached(task.Quota) || ctx.Err() != nil {
		return
	}

	var detail *domain.DetailRecord
	if task.FetchDetails && stub.URL != "" && uc.detailFetcher != nil {
		fetched, err := uc.detailFetcher.FetchDetail(ctx, stub.URL)
		if err != nil {
			var blocked *blockwatch.BlockedError
			if errors.As(err, &blocked) {
				state.recordBlock(blocked)
			}
			logger.Warn("Detail fetch failed, merging stub only", port.Fields{
				"url":   stub.URL,
				"error": err.Error(),
			})
		} else {
			detail = fetched
		}
	}

	property := merge.Merge(stub, detail, time.Now().UTC())

	// The task may have been queued before the quota was reached;
	// claiming a slot first keeps saved at the quota exactly.
	if !state.claimSlot(task.Quota) {
		return
	}
	if err := uc.sink.Emit(ctx, property, taskID); err != nil {
		state.releaseSlot()
		logger.Error("Failed to emit property", err, port.Fields{
			"listing_id": property.ListingID,
			"url":        property.URL,
		})
		return
	}
	state.recordMethod(strategyName)
}

// runState is the mutable state of one run, shared with the pool tasks.
type runState struct {
	mu      sync.Mutex
	saved   int
	pages   int
	methods []string
	seen    map[string]bool
	errs    []domain.ScrapeError
	blocks  *blockwatch.Log
}

func newRunState() *runState {
	return &runState{
		seen:   make(map[string]bool),
		blocks: blockwatch.NewLog(blockwatch.DefaultCapacity),
	}
}

func (s *runState) quotaReached(quota int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved >= quota
}

// claimSlot reserves one unit of quota before the emit happens, so
// concurrent tasks can never push saved past the quota.
func (s *runState) claimSlot(quota int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved >= quota {
		return false
	}
	s.saved++
	return true
}

func (s *runState) releaseSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved--
}

func (s *runState) recordMethod(strategyName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seen[strategyName] {
		s.seen[strategyName] = true
		s.methods = append(s.methods, strategyName)
	}
}

func (s *runState) pageProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages++
}

func (s *runState) recordError(strategyName, target string, page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, domain.ScrapeError{
		OccurredAt: time.Now().UTC(),
		Strategy:   strategyName,
		Target:     target,
		Page:       page,
		Message:    err.Error(),
	})
}

func (s *runState) recordBlock(blocked *blockwatch.BlockedError) {
	s.blocks.Add(domain.BlockEvent{
		URL:        blocked.URL,
		StatusCode: blocked.StatusCode,
		Reason:     blocked.Reason,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *runState) summary(taskID uuid.UUID, taskName string, startedAt, finishedAt time.Time) *domain.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.RunSummary{
		RunID:          taskID,
		TaskName:       taskName,
		ListingsSaved:  s.saved,
		PagesProcessed: s.pages,
		MethodsUsed:    append([]string(nil), s.methods...),
		Blocked:        s.blocks.Total(),
		BlockEvents:    s.blocks.Events(),
		Errors:         append([]domain.ScrapeError(nil), s.errs...),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		LikelyBlocked:  s.saved == 0 && s.blocks.Total() > 0,
	}
}
