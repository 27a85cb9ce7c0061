package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"estate-parser-service/internal/constants"
	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"
	"estate-parser-service/pkg/rabbitmq/rabbitmq_producer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RunReporterAdapter publishes run summaries to the run-reports queue.
// Implements port.RunReporterPort.
type RunReporterAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

// NewRunReporterAdapter creates a new adapter.
func NewRunReporterAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*RunReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &RunReporterAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

// ReportRun publishes the report for one finished run.
func (a *RunReporterAdapter) ReportRun(ctx context.Context, taskID uuid.UUID, summary *domain.RunSummary) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "RunReporterAdapter",
		"routing_key": a.routingKey,
	})

	dto := toRunReportDTO(taskID, summary)

	body, err := json.Marshal(dto)
	if err != nil {
		adapterLogger.Error("Failed to marshal run report to JSON", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to marshal run report for task %s: %w", taskID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"event-type":    constants.EventTypeRunReport,
			"event-version": constants.EventVersion,
		},
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	adapterLogger.Info("Publishing run report", port.Fields{"listings_saved": summary.ListingsSaved, "likely_blocked": summary.LikelyBlocked})
	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish run report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish run report for task %s: %w", taskID, err)
	}

	adapterLogger.Info("Successfully published run report", nil)
	return nil
}
