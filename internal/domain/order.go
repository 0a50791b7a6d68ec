package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contact-data field identifiers. They double as the keys of
// OrderRequest.OrderData and are listed in form order.
const (
	FieldName           = "name"
	FieldStreet         = "street"
	FieldZipCode        = "zipCode"
	FieldCountry        = "country"
	FieldEmail          = "email"
	FieldDeliveryMethod = "deliveryMethod"
)

// ContactFields lists the contact-data field identifiers in form order.
var ContactFields = []string{
	FieldName,
	FieldStreet,
	FieldZipCode,
	FieldCountry,
	FieldEmail,
	FieldDeliveryMethod,
}

// OrderRequest is handed to the order dispatcher when the contact form is
// submitted. It is built fresh for every submission.
type OrderRequest struct {
	Ingredients map[string]int    `json:"ingredients"`
	Price       decimal.Decimal   `json:"price"`
	OrderData   map[string]string `json:"orderData"`
}

// Order is a placed order as persisted by the OrderRepository.
type Order struct {
	ID          uuid.UUID         `json:"id"`
	SessionID   uuid.UUID         `json:"session_id"`
	Ingredients map[string]int    `json:"ingredients"`
	Price       decimal.Decimal   `json:"price"`
	OrderData   map[string]string `json:"order_data"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CustomerName returns the name entered on the contact form.
func (o Order) CustomerName() string {
	return o.OrderData[FieldName]
}

// DeliveryMethod returns the delivery option chosen on the contact form.
func (o Order) DeliveryMethod() string {
	return o.OrderData[FieldDeliveryMethod]
}

// ErrOrderNotFound is returned when an order lookup has no match.
var ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Order not found"}

// OrderRepository persists placed orders.
type OrderRepository interface {
	// CreateOrder stores a new order. ID and CreatedAt are filled in when zero.
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder retrieves a single order by ID.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListOrders returns the most recent orders, newest first.
	ListOrders(ctx context.Context, limit int) ([]Order, error)
}

// OrderEventPublisher announces placed orders to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order Order) error
}
