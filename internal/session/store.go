package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/burgerbuilder/internal/burger"
	"github.com/dukerupert/burgerbuilder/internal/contactform"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

// OrderDispatcher queues an order on behalf of a session.
type OrderDispatcher interface {
	PurchaseOrder(ctx context.Context, sessionID uuid.UUID, req domain.OrderRequest) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets how long an idle session is kept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFormOptions passes options to every contact form the store creates.
func WithFormOptions(opts ...contactform.Option) StoreOption {
	return func(s *Store) {
		s.formOpts = append(s.formOpts, opts...)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used by the janitor.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store holds sessions in memory and tracks their order status for the
// order worker.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	dispatcher OrderDispatcher
	formOpts   []contactform.Option
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewStore creates an empty store. Orders submitted from any session's
// contact form are handed to dispatcher.
func NewStore(dispatcher OrderDispatcher, opts ...StoreOption) *Store {
	s := &Store{
		sessions:   make(map[uuid.UUID]*Session),
		dispatcher: dispatcher,
		ttl:        DefaultTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDispatcher replaces the order dispatcher. It exists so the store and
// the worker can be wired to each other at startup.
func (s *Store) SetDispatcher(d OrderDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Get returns the session with the given ID and refreshes its idle timer.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// GetOrCreate returns the session with the given ID, creating it when absent.
// A nil ID always creates a session with a fresh ID.
func (s *Store) GetOrCreate(id uuid.UUID) *Session {
	if id != uuid.Nil {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	} else {
		id = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	sess := &Session{
		ID:       id,
		builder:  burger.New(),
		lastSeen: s.now(),
	}
	sess.form = contactform.NewController(sess, contactform.DispatcherFunc(
		func(ctx context.Context, req domain.OrderRequest) error {
			return s.dispatch(ctx, id, req)
		},
	), s.formOpts...)
	sess.form.Subscribe(recordFieldChange)
	s.sessions[id] = sess

	if telemetry.Business != nil {
		telemetry.Business.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return sess
}

// recordFieldChange counts contact field edits by field and resulting
// validity. Resets are not edits.
func recordFieldChange(ch contactform.Change) {
	if ch.Field == "" || telemetry.Business == nil {
		return
	}
	field, _ := ch.State.Field(ch.Field)
	telemetry.Business.FieldChanges.WithLabelValues(ch.Field, strconv.FormatBool(field.Valid)).Inc()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) dispatch(ctx context.Context, id uuid.UUID, req domain.OrderRequest) error {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	if d == nil {
		return domain.Unavailable("order.purchase", "Ordering is not available right now")
	}
	return d.PurchaseOrder(ctx, id, req)
}

// =============================================================================
// Order status tracking
// =============================================================================

// MarkLoading flags the session as having an order in flight. It fails with
// ECONFLICT when an order is already in flight.
func (s *Store) MarkLoading(id uuid.UUID) error {
	const op = "order.purchase"

	sess, ok := s.Get(id)
	if !ok {
		return domain.NotFound(op, "session", id.String())
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.Loading {
		return domain.Conflict(op, "Your order is already being placed")
	}
	sess.status.Loading = true
	sess.status.Purchased = false
	sess.status.Err = nil
	return nil
}

// CancelLoading clears the in-flight flag without recording an outcome.
func (s *Store) CancelLoading(id uuid.UUID) {
	sess, ok := s.Get(id)
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.status.Loading = false
	sess.mu.Unlock()
}

// MarkPurchased records a placed order and starts the shopper over with an
// empty burger and a fresh contact form.
func (s *Store) MarkPurchased(id uuid.UUID, order domain.Order) {
	sess, ok := s.Get(id)
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.builder.Reset()
	sess.status = Status{Purchased: true, LastOrderID: order.ID}
	sess.mu.Unlock()

	sess.form.Reset()
}

// MarkFailed records an order failure. The burger and the contact data are
// kept so the shopper can try again.
func (s *Store) MarkFailed(id uuid.UUID, err error) {
	sess, ok := s.Get(id)
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.status.Loading = false
	sess.status.Err = err
	sess.mu.Unlock()
}

// =============================================================================
// Expiry
// =============================================================================

// Sweep evicts sessions idle for longer than the TTL. Sessions with an order
// in flight are kept. It returns the number evicted.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.Loading() || sess.idleSince(now) <= s.ttl {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}

	if telemetry.Business != nil {
		telemetry.Business.ActiveSessions.Set(float64(len(s.sessions)))
		telemetry.Business.SessionsExpired.Add(float64(evicted))
	}
	return evicted
}

// RunJanitor sweeps expired sessions every interval until ctx is cancelled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}
