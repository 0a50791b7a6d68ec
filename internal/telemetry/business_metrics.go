package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the burger funnel:
// building, filling in contact data, and placing orders.
type BusinessMetrics struct {
	// Builder
	IngredientChanges *prometheus.CounterVec

	// Checkout funnel
	CheckoutStarted prometheus.Counter
	FieldChanges    *prometheus.CounterVec
	SubmitAttempts  *prometheus.CounterVec
	SubmitRejected  *prometheus.CounterVec
	ErrorsDismissed prometheus.Counter
	ActiveSessions  prometheus.Gauge
	SessionsExpired prometheus.Counter

	// Orders
	OrdersPlaced    *prometheus.CounterVec
	OrdersFailed    *prometheus.CounterVec
	OrderValue      prometheus.Histogram
	OrderLatency    prometheus.Histogram
	EventsPublished *prometheus.CounterVec

	// Order queue
	JobsEnqueued prometheus.Counter
	JobsRejected prometheus.Counter
	JobsInFlight prometheus.Gauge
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "burgerbuilder"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		// =======================================================================
		// Builder
		// =======================================================================
		IngredientChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ingredient_changes_total",
				Help:      "Ingredients added to or removed from a burger",
			},
			[]string{"ingredient", "action"}, // action: add, remove
		),

		// =======================================================================
		// Checkout Funnel
		// =======================================================================
		CheckoutStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Contact data page views",
			},
		),
		FieldChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "contact_field_changes_total",
				Help:      "Contact form field changes by field and resulting validity",
			},
			[]string{"field", "valid"},
		),
		SubmitAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "contact_submit_attempts_total",
				Help:      "Contact form submissions by outcome",
			},
			[]string{"outcome"}, // outcome: queued, invalid, conflict, unavailable, error
		),
		SubmitRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "contact_submit_rejected_fields_total",
				Help:      "Fields that blocked a submission",
			},
			[]string{"field"},
		),
		ErrorsDismissed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_errors_dismissed_total",
				Help:      "Order error modals closed by the shopper",
			},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_sessions",
				Help:      "Shopper sessions currently held in memory",
			},
		),
		SessionsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_expired_total",
				Help:      "Shopper sessions evicted after going idle",
			},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersPlaced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_placed_total",
				Help:      "Orders persisted, by delivery method",
			},
			[]string{"delivery_method"},
		),
		OrdersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_failed_total",
				Help:      "Orders that could not be placed, by error code",
			},
			[]string{"code"},
		),
		OrderValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_dollars",
				Help:      "Burger price per placed order",
				Buckets:   []float64{4, 5, 6, 7, 8, 10, 12, 15, 20},
			},
		),
		OrderLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_duration_seconds",
				Help:      "Time from submission to order outcome",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_events_published_total",
				Help:      "order placed events by publish result",
			},
			[]string{"result"}, // result: ok, error
		),

		// =======================================================================
		// Order Queue
		// =======================================================================
		JobsEnqueued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_jobs_enqueued_total",
				Help:      "Order jobs accepted by the worker queue",
			},
		),
		JobsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_jobs_rejected_total",
				Help:      "Order jobs turned away because the queue was full",
			},
		),
		JobsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_jobs_in_flight",
				Help:      "Order jobs currently being processed",
			},
		),
	}

	return m
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
