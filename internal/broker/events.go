package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cyrongau/fudaydiye-local-app-sub002/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes relayed outbox events to the broker.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOutbox forwards a stored outbox event. The payload was
// serialized when the originating transaction committed, so the relay
// never re-interprets it.
func (ep *EventPublisher) PublishOutbox(ctx context.Context, event *models.OutboxEvent) error {
	return ep.producer.Publish(ctx, event.EventType+"-"+event.EventID, event.Payload)
}

// EventHandler routes consumed lifecycle events to registered hooks.
type EventHandler struct {
	onStatus    func(context.Context, *models.OrderStatusEvent) error
	onDelivered func(context.Context, *models.OrderDeliveredEvent) error
	onCancelled func(context.Context, *models.OrderCancelledEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnStatus registers a handler for ACCEPTED and SHIPPED events.
func (eh *EventHandler) OnStatus(handler func(context.Context, *models.OrderStatusEvent) error) {
	eh.onStatus = handler
}

// OnDelivered registers a handler for ORDER_DELIVERED events.
func (eh *EventHandler) OnDelivered(handler func(context.Context, *models.OrderDeliveredEvent) error) {
	eh.onDelivered = handler
}

// OnCancelled registers a handler for ORDER_CANCELLED events.
func (eh *EventHandler) OnCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onCancelled = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderAccepted, models.EventTypeOrderShipped:
		if eh.onStatus != nil {
			var event models.OrderStatusEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal status event: %w", err)
			}
			return eh.onStatus(ctx, &event)
		}

	case models.EventTypeOrderDelivered:
		if eh.onDelivered != nil {
			var event models.OrderDeliveredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal delivered event: %w", err)
			}
			return eh.onDelivered(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal cancelled event: %w", err)
			}
			return eh.onCancelled(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
