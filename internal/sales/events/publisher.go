package events

import (
	"context"

	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/messaging"
)

// SalesEventPublisher publishes sales lifecycle events. A nil publisher is
// valid and drops every event, so callers never guard for a disabled broker.
type SalesEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewSalesEventPublisher creates a publisher on the sales events exchange
func NewSalesEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*SalesEventPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeSalesEvents, "retail-service", log)
	if err != nil {
		return nil, err
	}

	return &SalesEventPublisher{publisher: pub, logger: log}, nil
}

// SaleRecorded publishes a sale recorded event
func (p *SalesEventPublisher) SaleRecorded(ctx context.Context, event messaging.SaleRecordedEvent) {
	p.publish(ctx, messaging.EventSaleRecorded, event)
}

// SaleDeleted publishes a sale deleted event
func (p *SalesEventPublisher) SaleDeleted(ctx context.Context, event messaging.SaleDeletedEvent) {
	p.publish(ctx, messaging.EventSaleDeleted, event)
}

// SaleReturnCreated publishes a sale return created event
func (p *SalesEventPublisher) SaleReturnCreated(ctx context.Context, event messaging.SaleReturnCreatedEvent) {
	p.publish(ctx, messaging.EventSaleReturnCreated, event)
}

// StockLow publishes a low stock warning for a medicine
func (p *SalesEventPublisher) StockLow(ctx context.Context, event messaging.StockLowEvent) {
	p.publish(ctx, messaging.EventStockLow, event)
}

// publish is best-effort: a broker failure is logged, never surfaced to the
// caller, because the sale itself has already committed
func (p *SalesEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}
