// Package events announces placed orders to downstream consumers such as the
// kitchen display. Orders are published as JSON on a NATS subject.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// DefaultSubject is the subject order placed events are published on.
const DefaultSubject = "orders.placed"

// OrderPlaced is the payload of an order placed event.
type OrderPlaced struct {
	OrderID        uuid.UUID         `json:"order_id"`
	SessionID      uuid.UUID         `json:"session_id"`
	Ingredients    map[string]int    `json:"ingredients"`
	Price          string            `json:"price"`
	DeliveryMethod string            `json:"delivery_method"`
	Customer       map[string]string `json:"customer"`
	PlacedAt       time.Time         `json:"placed_at"`
}

// NewOrderPlaced builds the event payload for an order. The price is sent
// as a fixed two-decimal string so consumers never see float rounding.
func NewOrderPlaced(order domain.Order) OrderPlaced {
	customer := make(map[string]string, len(order.OrderData))
	for k, v := range order.OrderData {
		if k == domain.FieldDeliveryMethod {
			continue
		}
		customer[k] = v
	}
	return OrderPlaced{
		OrderID:        order.ID,
		SessionID:      order.SessionID,
		Ingredients:    order.Ingredients,
		Price:          order.Price.StringFixed(2),
		DeliveryMethod: order.DeliveryMethod(),
		Customer:       customer,
		PlacedAt:       order.CreatedAt,
	}
}

// NopPublisher drops every event. It is used when NATS is not configured.
type NopPublisher struct{}

// PublishOrderPlaced does nothing.
func (NopPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return nil
}

// Close does nothing.
func (NopPublisher) Close() {}

// Fanout publishes each event to every publisher in turn. All publishers are
// tried even when one fails; the failures are joined.
type Fanout []domain.OrderEventPublisher

// PublishOrderPlaced publishes order to every publisher.
func (f Fanout) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishOrderPlaced(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
