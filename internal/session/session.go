// Package session keeps each shopper's burger, contact form and order status
// in memory, keyed by the ID carried in the session cookie.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/burgerbuilder/internal/burger"
	"github.com/dukerupert/burgerbuilder/internal/contactform"
	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// Status is the order status of a session.
type Status struct {
	// Loading is true while an order is queued or being placed.
	Loading bool

	// Purchased is set once an order went through and cleared when the
	// shopper is sent back to the builder.
	Purchased bool

	// LastOrderID identifies the most recently placed order.
	LastOrderID uuid.UUID

	// Err is the last order failure, shown until dismissed.
	Err error
}

// BuilderView is a snapshot of the burger for rendering.
type BuilderView struct {
	Ingredients map[string]int
	Price       decimal.Decimal
	Purchasable bool
}

// Session is one shopper's state. It implements contactform.StateProvider.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	builder  *burger.Builder
	status   Status
	lastSeen time.Time

	form *contactform.Controller
}

// Order returns a copy of the burger's ingredient counts together with
// their price, both read under the session lock.
func (s *Session) Order() (map[string]int, decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Ingredients(), s.builder.TotalPrice()
}

// Loading reports whether an order is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Loading
}

// Form returns the session's contact form controller.
func (s *Session) Form() *contactform.Controller {
	return s.form
}

// Builder returns a snapshot of the burger.
func (s *Session) Builder() BuilderView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuilderView{
		Ingredients: s.builder.Ingredients(),
		Price:       s.builder.TotalPrice(),
		Purchasable: s.builder.Purchasable(),
	}
}

// AddIngredient stacks one more of the named ingredient. The burger is
// frozen while an order is in flight.
func (s *Session) AddIngredient(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Loading {
		return domain.Conflict("burger.add", "Your order is already being placed")
	}
	return s.builder.Add(name)
}

// RemoveIngredient takes one of the named ingredient off.
func (s *Session) RemoveIngredient(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Loading {
		return domain.Conflict("burger.remove", "Your order is already being placed")
	}
	return s.builder.Remove(name)
}

// Status returns the current order status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// DismissError clears the last order failure.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Err = nil
}

// AcknowledgePurchase clears the purchased flag once the shopper has been
// sent back to the builder.
func (s *Session) AcknowledgePurchase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Purchased = false
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
