package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string
	Release     string

	// SampleRate is the share of errors sent, 0 to 1. Zero means 1.
	SampleRate float64

	// TracesSampleRate is the share of transactions traced. Zero disables
	// performance monitoring.
	TracesSampleRate float64

	Debug bool
}

var enabled atomic.Bool

// InitSentry initializes the Sentry client. The returned func flushes
// buffered events and must be called on shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	enabled.Store(false)
	noop := func() {}

	if !cfg.Enabled {
		logger.Info("Sentry disabled (SENTRY_ENABLED=false)")
		return noop, nil
	}
	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured, disabling error tracking")
		return noop, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return scrubEvent(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled reports whether events are sent.
func IsEnabled() bool {
	return enabled.Load()
}

// scrubEvent keeps shopper contact data out of events. Posted forms carry
// the contact fields and the cookies carry session and CSRF tokens.
func scrubEvent(event *sentry.Event) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
		delete(event.Request.Headers, "Cookie")
		delete(event.Request.Headers, "X-Csrf-Token")
	}
	for _, field := range domain.ContactFields {
		if field == domain.FieldDeliveryMethod {
			continue
		}
		delete(event.Extra, field)
	}
	return event
}

// CaptureErrorWithSession captures an error tagged with the shopper session
// it happened in. Order failures on the worker are reported this way since
// they have no request.
func CaptureErrorWithSession(err error, sessionID string, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", sessionID)
		scope.SetTag("error_code", domain.ErrorCode(err))
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage captures a non-error event.
func CaptureMessage(message string, level sentry.Level, extras map[string]interface{}) {
	if !IsEnabled() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		sentry.CaptureMessage(message)
	})
}

// CaptureErrorFromContext captures an error on the request's hub, so it
// carries the request and session set by the middleware below.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", domain.ErrorCode(err))
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// SentryMiddleware gives every request its own hub with the request attached.
// It must run before router.Recovery so panics are reported on that hub.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
		})
	}
}

// SessionExtractor returns the shopper session ID carried by a request
// context, or "" when there is none.
type SessionExtractor func(ctx context.Context) string

// SentryContextMiddleware tags the request hub with the matched route and
// the shopper session. It must run after the session middleware.
func SentryContextMiddleware(sessionOf SessionExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
				r = r.WithContext(sentry.SetHubOnContext(r.Context(), hub))
			}

			hub.ConfigureScope(func(scope *sentry.Scope) {
				if r.Pattern != "" {
					scope.SetTag("route", r.Pattern)
				}
				if sessionOf != nil {
					if id := sessionOf(r.Context()); id != "" {
						scope.SetTag("session_id", id)
					}
				}
			})

			next.ServeHTTP(w, r)
		})
	}
}
