package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (l *testLogger) Info(msg string, fields port.Fields)             {}
func (l *testLogger) Warn(msg string, fields port.Fields)             {}
func (l *testLogger) Error(msg string, err error, fields port.Fields) {}
func (l *testLogger) Debug(msg string, fields port.Fields)            {}
func (l *testLogger) WithFields(fields port.Fields) port.LoggerPort   { return l }

type fakeOrchestrator struct {
	mu      sync.Mutex
	tasks   []domain.ScrapeTask
	taskIDs []uuid.UUID
	summary *domain.RunSummary
	err     error
}

func (f *fakeOrchestrator) Execute(ctx context.Context, task domain.ScrapeTask, taskID uuid.UUID) (*domain.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	f.taskIDs = append(f.taskIDs, taskID)
	return f.summary, f.err
}

type fakeReporter struct {
	mu        sync.Mutex
	taskIDs   []uuid.UUID
	summaries []*domain.RunSummary
	err       error
}

func (f *fakeReporter) ReportRun(ctx context.Context, taskID uuid.UUID, summary *domain.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskIDs = append(f.taskIDs, taskID)
	f.summaries = append(f.summaries, summary)
	return f.err
}

func newHandlerUnderTest(uc *fakeOrchestrator, rep *fakeReporter) *TasksConsumerAdapter {
	return &TasksConsumerAdapter{
		orchestrateUC: uc,
		reporter:      rep,
		logger:        &testLogger{},
	}
}

func validTaskBody(taskID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{
		"task_id": "%s",
		"name": "nightly-bow",
		"targets": ["https://portal.example/for-sale?area=bow"],
		"quota": 40,
		"max_pages": 2,
		"fetch_details": true,
		"concurrency": 3
	}`, taskID))
}

func TestMessageHandlerDispatchesValidTask(t *testing.T) {
	taskID := uuid.New()
	uc := &fakeOrchestrator{summary: &domain.RunSummary{
		RunID:         taskID,
		TaskName:      "nightly-bow",
		ListingsSaved: 7,
		StartedAt:     time.Now().UTC(),
		FinishedAt:    time.Now().UTC(),
	}}
	rep := &fakeReporter{}
	adapter := newHandlerUnderTest(uc, rep)

	err := adapter.messageHandler(amqp.Delivery{Body: validTaskBody(taskID)})
	require.NoError(t, err)

	require.Len(t, uc.tasks, 1)
	task := uc.tasks[0]
	require.Equal(t, "nightly-bow", task.Name)
	require.Equal(t, []string{"https://portal.example/for-sale?area=bow"}, task.Targets)
	require.Equal(t, 40, task.Quota)
	require.Equal(t, 2, task.MaxPages)
	require.True(t, task.FetchDetails)
	require.Equal(t, 3, task.Concurrency)
	require.Equal(t, taskID, uc.taskIDs[0])

	require.Len(t, rep.summaries, 1)
	require.Equal(t, 7, rep.summaries[0].ListingsSaved)
	require.Equal(t, taskID, rep.taskIDs[0])
}

func TestMessageHandlerHonorsTraceHeader(t *testing.T) {
	taskID := uuid.New()
	uc := &fakeOrchestrator{summary: &domain.RunSummary{RunID: taskID}}
	adapter := newHandlerUnderTest(uc, &fakeReporter{})

	err := adapter.messageHandler(amqp.Delivery{
		Body: validTaskBody(taskID),
		Headers: amqp.Table{
			"x-trace-id":    "trace-123",
			"event-type":    "ScrapeTaskEvent",
			"event-version": "1.0.0",
		},
	})
	require.NoError(t, err)
	require.Len(t, uc.tasks, 1)
}

func TestMessageHandlerRejectsContractViolation(t *testing.T) {
	uc := &fakeOrchestrator{}
	adapter := newHandlerUnderTest(uc, &fakeReporter{})

	// quota missing entirely
	body := []byte(`{"task_id": "8f14e45f-ceea-4e8b-8d2f-6f1c1b6f2a10", "targets": ["https://portal.example/for-sale"]}`)
	err := adapter.messageHandler(amqp.Delivery{Body: body})

	require.Error(t, err)
	require.Contains(t, err.Error(), "contract validation")
	require.Empty(t, uc.tasks)
}

func TestMessageHandlerRejectsUnknownEventType(t *testing.T) {
	uc := &fakeOrchestrator{}
	adapter := newHandlerUnderTest(uc, &fakeReporter{})

	err := adapter.messageHandler(amqp.Delivery{
		Body:    validTaskBody(uuid.New()),
		Headers: amqp.Table{"event-type": "SomethingElseEvent"},
	})

	require.Error(t, err)
	require.Empty(t, uc.tasks)
}

func TestMessageHandlerPropagatesUseCaseError(t *testing.T) {
	uc := &fakeOrchestrator{err: fmt.Errorf("scrape task 'x': quota must be a positive number, got 0")}
	rep := &fakeReporter{}
	adapter := newHandlerUnderTest(uc, rep)

	err := adapter.messageHandler(amqp.Delivery{Body: validTaskBody(uuid.New())})

	require.Error(t, err)
	require.Empty(t, rep.summaries)
}

func TestMessageHandlerSurvivesReporterFailure(t *testing.T) {
	taskID := uuid.New()
	uc := &fakeOrchestrator{summary: &domain.RunSummary{RunID: taskID}}
	rep := &fakeReporter{err: fmt.Errorf("broker unavailable")}
	adapter := newHandlerUnderTest(uc, rep)

	err := adapter.messageHandler(amqp.Delivery{Body: validTaskBody(taskID)})

	// The scrape itself succeeded; a lost report must not requeue it.
	require.NoError(t, err)
	require.Len(t, rep.summaries, 1)
}
