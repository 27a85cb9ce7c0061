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

// PropertyQueueAdapter publishes every merged property to the
// processed-properties queue. Implements port.PropertySinkPort.
type PropertyQueueAdapter struct {
	producer   *rabbitmq_producer.Publisher
	routingKey string
}

// NewPropertyQueueAdapter creates a new adapter.
func NewPropertyQueueAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*PropertyQueueAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &PropertyQueueAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

// Emit publishes one property event.
func (a *PropertyQueueAdapter) Emit(ctx context.Context, property domain.Property, taskID uuid.UUID) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "PropertyQueueAdapter",
		"routing_key": a.routingKey,
	})

	eventDTO := ProcessedPropertyEventDTO{
		Property: toPropertyDTO(property),
		TaskID:   taskID,
	}

	body, err := json.Marshal(eventDTO)
	if err != nil {
		adapterLogger.Error("Failed to marshal property event to JSON", err, nil)
		return fmt.Errorf("failed to marshal property event for %s: %w", property.URL, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"event-type":    constants.EventTypeProcessedProperty,
			"event-version": constants.EventVersion,
		},
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish property event", err, nil)
		return err
	}

	adapterLogger.Debug("Published property event", port.Fields{"listing_id": property.ListingID, "source": property.Source})
	return nil
}
