// Package worker places orders in the background. Submitting the contact form
// only queues the order; the worker validates, stores and announces it and
// reports the outcome back to the shopper's session.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

// OrderPlacer places a validated order.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, sessionID uuid.UUID, req domain.OrderRequest) (*domain.Order, error)
}

// StatusTracker records the order status of a session.
type StatusTracker interface {
	// MarkLoading fails with ECONFLICT when an order is already in flight.
	MarkLoading(sessionID uuid.UUID) error
	CancelLoading(sessionID uuid.UUID)
	MarkPurchased(sessionID uuid.UUID, order domain.Order)
	MarkFailed(sessionID uuid.UUID, err error)
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// MaxConcurrency is the maximum number of orders placed concurrently
	MaxConcurrency int

	// QueueSize is how many orders may wait before new ones are turned away
	QueueSize int

	// JobTimeout bounds a single order placement
	JobTimeout time.Duration
}

// Job is one queued order.
type Job struct {
	SessionID  uuid.UUID
	Request    domain.OrderRequest
	RequestID  string
	EnqueuedAt time.Time
}

// Worker processes queued orders
type Worker struct {
	config  Config
	placer  OrderPlacer
	tracker StatusTracker
	jobs    chan Job
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWorker creates a new order worker
func NewWorker(placer OrderPlacer, tracker StatusTracker, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 10 * time.Second
	}

	return &Worker{
		config:  config,
		placer:  placer,
		tracker: tracker,
		jobs:    make(chan Job, config.QueueSize),
		logger:  logger,
	}
}

// PurchaseOrder marks the session loading and queues the order. It never
// blocks: when the queue is full the loading flag is cleared and EUNAVAILABLE
// is returned.
func (w *Worker) PurchaseOrder(ctx context.Context, sessionID uuid.UUID, req domain.OrderRequest) error {
	const op = "order.purchase"

	if err := w.tracker.MarkLoading(sessionID); err != nil {
		return err
	}

	job := Job{
		SessionID:  sessionID,
		Request:    req,
		RequestID:  domain.RequestIDFromContext(ctx),
		EnqueuedAt: time.Now(),
	}

	select {
	case w.jobs <- job:
		if telemetry.Business != nil {
			telemetry.Business.JobsEnqueued.Inc()
		}
		w.logger.Debug("order queued",
			"worker_id", w.config.WorkerID,
			"session_id", sessionID,
			"request_id", job.RequestID,
		)
		return nil
	default:
		w.tracker.CancelLoading(sessionID)
		if telemetry.Business != nil {
			telemetry.Business.JobsRejected.Inc()
		}
		telemetry.CaptureMessage("order queue full", sentry.LevelWarning, map[string]interface{}{
			"queue_size": w.config.QueueSize,
		})
		return domain.Unavailable(op, "We are taking too many orders right now. Please try again in a moment.")
	}
}

// Start processes queued orders until the context is cancelled. In-flight
// orders are allowed to finish; orders still queued are failed.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"max_concurrency", w.config.MaxConcurrency,
		"queue_size", w.config.QueueSize,
	)

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			w.drain()
			w.wg.Wait()
			return ctx.Err()

		case job := <-w.jobs:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				w.fail(job, domain.Unavailable("order.purchase", "The shop is closing. Please try again later."))
				continue
			}

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }()
				w.process(ctx, job)
			}()
		}
	}
}

// process places a single order and reports the outcome to the tracker.
func (w *Worker) process(ctx context.Context, job Job) {
	if telemetry.Business != nil {
		telemetry.Business.JobsInFlight.Inc()
		defer telemetry.Business.JobsInFlight.Dec()
	}

	// The order is finished even if shutdown starts mid-flight.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.JobTimeout)
	defer cancel()
	jobCtx = domain.NewContextWithSessionID(jobCtx, job.SessionID)
	if job.RequestID != "" {
		jobCtx = domain.NewContextWithRequestID(jobCtx, job.RequestID)
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("order job panicked",
				"worker_id", w.config.WorkerID,
				"session_id", job.SessionID,
				"panic", r,
			)
			w.fail(job, domain.Internal(fmt.Errorf("panic: %v", r), "order.purchase", "failed to place order"))
		}
	}()

	order, err := w.placer.PlaceOrder(jobCtx, job.SessionID, job.Request)
	if telemetry.Business != nil {
		telemetry.Business.OrderLatency.Observe(time.Since(job.EnqueuedAt).Seconds())
	}
	if err != nil {
		w.fail(job, err)
		return
	}

	w.tracker.MarkPurchased(job.SessionID, *order)

	if telemetry.Business != nil {
		telemetry.Business.OrdersPlaced.WithLabelValues(order.DeliveryMethod()).Inc()
		price, _ := order.Price.Float64()
		telemetry.Business.OrderValue.Observe(price)
	}

	w.logger.Info("order placed",
		"worker_id", w.config.WorkerID,
		"order_id", order.ID,
		"session_id", job.SessionID,
		"price", order.Price.StringFixed(2),
		"delivery_method", order.DeliveryMethod(),
		"duration_ms", time.Since(job.EnqueuedAt).Milliseconds(),
	)
}

func (w *Worker) fail(job Job, err error) {
	code := domain.ErrorCode(err)

	w.logger.Error("failed to place order",
		"worker_id", w.config.WorkerID,
		"session_id", job.SessionID,
		"request_id", job.RequestID,
		"code", code,
		"op", domain.ErrorOp(err),
		"error", err,
	)

	// Rejected input is the shopper's problem, not ours.
	if code != domain.EINVALID {
		telemetry.CaptureErrorWithSession(err, job.SessionID.String(), map[string]interface{}{
			"request_id": job.RequestID,
		})
	}
	if telemetry.Business != nil {
		telemetry.Business.OrdersFailed.WithLabelValues(code).Inc()
	}

	w.tracker.MarkFailed(job.SessionID, err)
}

// drain fails every order still waiting in the queue.
func (w *Worker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.fail(job, domain.Unavailable("order.purchase", "The shop is closing. Please try again later."))
		default:
			return
		}
	}
}
