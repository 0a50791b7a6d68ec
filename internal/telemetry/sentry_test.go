package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitSentry_Disabled(t *testing.T) {
	cleanup, err := InitSentry(SentryConfig{Enabled: false}, discardLogger())
	if err != nil {
		t.Fatalf("InitSentry() error = %v", err)
	}
	if cleanup == nil {
		t.Fatal("InitSentry() returned nil cleanup")
	}
	cleanup()

	if IsEnabled() {
		t.Error("IsEnabled() = true, want false")
	}
}

func TestInitSentry_MissingDSN(t *testing.T) {
	cleanup, err := InitSentry(SentryConfig{Enabled: true}, discardLogger())
	if err != nil {
		t.Fatalf("InitSentry() error = %v", err)
	}
	cleanup()

	if IsEnabled() {
		t.Error("IsEnabled() = true without a DSN, want false")
	}
}

func TestCaptureFunctions_NoopWhenDisabled(t *testing.T) {
	enabled.Store(false)

	// None of these may panic without an initialized client.
	CaptureErrorWithSession(errors.New("boom"), "session-1", nil)
	CaptureErrorFromContext(context.Background(), errors.New("boom"), nil)
	CaptureMessage("order queue full", sentry.LevelWarning, nil)
}

func TestSentryContextMiddleware_PassThroughWhenDisabled(t *testing.T) {
	enabled.Store(false)

	called := false
	h := SentryContextMiddleware(func(ctx context.Context) string { return "abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout", nil))

	if !called {
		t.Error("next handler was not called")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Data:    "name=Alice&email=a%40b.co",
			Cookies: "bb_session=abc",
			Headers: map[string]string{"Cookie": "bb_session=abc", "X-Csrf-Token": "t", "User-Agent": "test"},
		},
		Extra: map[string]interface{}{
			domain.FieldEmail:          "a@b.co",
			domain.FieldZipCode:        "12345",
			domain.FieldDeliveryMethod: "fastest",
			"order_id":                 "42",
		},
	}

	got := scrubEvent(event)

	if got.Request.Data != "" || got.Request.Cookies != "" {
		t.Errorf("request body or cookies kept: %+v", got.Request)
	}
	if _, ok := got.Request.Headers["Cookie"]; ok {
		t.Error("Cookie header kept")
	}
	if got.Request.Headers["User-Agent"] != "test" {
		t.Error("unrelated header dropped")
	}
	if _, ok := got.Extra[domain.FieldEmail]; ok {
		t.Error("email kept in extras")
	}
	if got.Extra[domain.FieldDeliveryMethod] != "fastest" || got.Extra["order_id"] != "42" {
		t.Errorf("non-personal extras dropped: %v", got.Extra)
	}
}
