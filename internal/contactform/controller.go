package contactform

import (
	"context"
	"sync"

	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/shopspring/decimal"
)

// StateProvider is the read-only view of the shopper's burger and order
// status the form needs at submit and render time.
type StateProvider interface {
	// Order returns the ingredient counts and the price of exactly those
	// ingredients, read as one snapshot.
	Order() (map[string]int, decimal.Decimal)
	Loading() bool
}

// Dispatcher places an order. It returns once the order is queued; the
// outcome is reported through the order status, not through this call.
type Dispatcher interface {
	PurchaseOrder(ctx context.Context, req domain.OrderRequest) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req domain.OrderRequest) error

// PurchaseOrder calls f.
func (f DispatcherFunc) PurchaseOrder(ctx context.Context, req domain.OrderRequest) error {
	return f(ctx, req)
}

// Change is passed to subscribers after every state swap. Field names the
// changed field and is empty when the whole form was reset.
type Change struct {
	Field string
	State State
}

// Controller owns one shopper's form state. Each change runs to completion
// and swaps in a new State before the next change is applied.
type Controller struct {
	mu    sync.Mutex
	state State
	opts  []Option

	provider   StateProvider
	dispatcher Dispatcher

	listenersMu sync.Mutex
	listeners   map[int]func(Change)
	nextID      int
}

// NewController creates a controller holding a freshly initialized form.
func NewController(provider StateProvider, dispatcher Dispatcher, opts ...Option) *Controller {
	return &Controller{
		state:      Initialize(opts...),
		opts:       opts,
		provider:   provider,
		dispatcher: dispatcher,
		listeners:  make(map[int]func(Change)),
	}
}

// CurrentState returns the current snapshot.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnFieldChanged stores raw as the field's value, re-validates that field and
// recomputes form validity. Unknown identifiers leave the state unchanged.
func (c *Controller) OnFieldChanged(id, raw string) (State, error) {
	c.mu.Lock()
	current := c.state
	d, ok := current.Field(id)
	if !ok {
		c.mu.Unlock()
		return current, domain.NotFound("contactform.change", "field", id)
	}

	d.Value = raw
	d.Valid = CheckValidity(raw, d.Rules)
	d.Touched = true

	next := current.with(id, d)
	c.state = next
	c.mu.Unlock()

	c.notify(Change{Field: id, State: next})
	return next, nil
}

// OnSubmit collects the current values and hands an OrderRequest to the
// dispatcher. An invalid form is never dispatched.
func (c *Controller) OnSubmit(ctx context.Context) error {
	const op = "contactform.submit"

	state := c.CurrentState()
	if !state.FormIsValid {
		return state.InvalidFields(op)
	}
	if c.provider.Loading() {
		return domain.Conflict(op, "Your order is already being placed")
	}

	ingredients, price := c.provider.Order()
	req := domain.OrderRequest{
		Ingredients: ingredients,
		Price:       price,
		OrderData:   state.Values(),
	}
	return c.dispatcher.PurchaseOrder(ctx, req)
}

// Reset discards the entered data and starts over with a fresh form.
func (c *Controller) Reset() {
	c.mu.Lock()
	next := Initialize(c.opts...)
	c.state = next
	c.mu.Unlock()

	c.notify(Change{State: next})
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription.
func (c *Controller) Subscribe(fn func(Change)) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify(ch Change) {
	c.listenersMu.Lock()
	fns := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
