package events

import (
	"context"

	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/messaging"
)

// PurchasingEventPublisher publishes purchasing lifecycle events on the
// inventory events exchange. Nil-safe like the sales publisher.
type PurchasingEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPurchasingEventPublisher creates a publisher on the inventory events exchange
func NewPurchasingEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PurchasingEventPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "retail-service", log)
	if err != nil {
		return nil, err
	}

	return &PurchasingEventPublisher{publisher: pub, logger: log}, nil
}

// BillRecorded publishes a purchase bill recorded event
func (p *PurchasingEventPublisher) BillRecorded(ctx context.Context, event messaging.PurchaseBillRecordedEvent) {
	p.publish(ctx, messaging.EventPurchaseBillRecorded, event)
}

// ReturnCreated publishes a purchase return created event
func (p *PurchasingEventPublisher) ReturnCreated(ctx context.Context, event messaging.PurchaseReturnCreatedEvent) {
	p.publish(ctx, messaging.EventPurchaseReturnCreated, event)
}

func (p *PurchasingEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
