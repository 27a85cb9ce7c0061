package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"estate-parser-service/internal/constants"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/contracts"
	"estate-parser-service/internal/core/port"
	usecases_port "estate-parser-service/internal/core/port/usecases"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_common"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TasksConsumerAdapter listens on the scrape-tasks queue and dispatches
// each task to the orchestration use case.
type TasksConsumerAdapter struct {
	consumer      rabbitmq_consumer.Consumer
	orchestrateUC usecases_port.OrchestrateScrapePort
	reporter      port.RunReporterPort
	logger        port.LoggerPort
}

// NewTasksConsumerAdapter creates the adapter and its underlying
// distributing consumer.
func NewTasksConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	orchestrateUC usecases_port.OrchestrateScrapePort,
	reporter port.RunReporterPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*TasksConsumerAdapter, error) {
	adapter := &TasksConsumerAdapter{
		orchestrateUC: orchestrateUC,
		reporter:      reporter,
		logger:        logger,
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for scrape tasks: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func (a *TasksConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID, ok := d.Headers["x-trace-id"].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	msgLogger.Info("Received new scrape task", nil)

	// Messages carry event metadata in headers; absent headers mean the
	// current task contract.
	eventType, _ := d.Headers["event-type"].(string)
	if eventType == "" {
		eventType = constants.EventTypeScrapeTask
	}
	eventVersion, _ := d.Headers["event-version"].(string)
	if eventVersion == "" {
		eventVersion = constants.EventVersion
	}

	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		msgLogger.Error("Task payload failed contract validation", err, port.Fields{"event_type": eventType})
		return fmt.Errorf("contract validation error: %w", err)
	}

	var taskDTO ScrapeTaskDTO
	if err := json.Unmarshal(d.Body, &taskDTO); err != nil {
		msgLogger.Error("Error unmarshalling task DTO", err, nil)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	taskLogger := msgLogger.WithFields(port.Fields{"task_id": taskDTO.TaskID.String()})
	ctx = contextkeys.ContextWithLogger(ctx, taskLogger)

	summary, err := a.orchestrateUC.Execute(ctx, toScrapeTask(taskDTO), taskDTO.TaskID)
	if err != nil {
		taskLogger.Error("Orchestration use case failed", err, nil)
		return err
	}

	if a.reporter != nil && summary != nil {
		// A failed report is not a reason to re-run the whole scrape.
		if err := a.reporter.ReportRun(ctx, taskDTO.TaskID, summary); err != nil {
			taskLogger.Error("Failed to report run results", err, nil)
		}
	}

	return nil
}

// Start implements EventListenerPort.
func (a *TasksConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close implements EventListenerPort.
func (a *TasksConsumerAdapter) Close() error {
	return a.consumer.Close()
}
