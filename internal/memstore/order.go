// Package memstore is an in-memory OrderRepository used when no database
// is configured and in tests.
package memstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// OrderRepository keeps orders in memory. It is safe for concurrent use.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]domain.Order
	now    func() time.Time
}

// NewOrderRepository creates an empty repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[uuid.UUID]domain.Order),
		now:    time.Now,
	}
}

// CreateOrder stores a copy of order. ID and CreatedAt are filled in when zero.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now().UTC()
	}
	if _, exists := r.orders[order.ID]; exists {
		return domain.Conflict("order.save", "order already exists")
	}

	r.orders[order.ID] = clone(*order)
	return nil
}

// GetOrder returns the order with the given ID.
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = clone(o)
	return &o, nil
}

// ListOrders returns up to limit orders, newest first.
func (r *OrderRepository) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, clone(o))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(o domain.Order) domain.Order {
	o.Ingredients = maps.Clone(o.Ingredients)
	o.OrderData = maps.Clone(o.OrderData)
	return o
}
