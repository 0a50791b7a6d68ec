package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"github.com/dukerupert/burgerbuilder/internal/cookie"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/session"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// =============================================================================
// RequestID
// =============================================================================

func TestRequestID_GeneratesID(t *testing.T) {
	var ctxID, domainID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		domainID = domain.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if ctxID == "" {
		t.Fatal("request ID not set in context")
	}
	if domainID != ctxID {
		t.Errorf("domain request ID = %q, want %q", domainID, ctxID)
	}
	if got := rec.Header().Get(RequestIDHeader); got != ctxID {
		t.Errorf("response header = %q, want %q", got, ctxID)
	}
}

func TestRequestID_KeepsIncomingID(t *testing.T) {
	var ctxID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "lb-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ctxID != "lb-123" {
		t.Errorf("request ID = %q, want lb-123", ctxID)
	}
}

// =============================================================================
// Session
// =============================================================================

func newSessionMiddleware(store *session.Store) func(http.Handler) http.Handler {
	return Session(SessionConfig{
		Store:        store,
		CookieConfig: cookie.NewConfig("", false),
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookie.SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSession_CreatesSessionAndCookie(t *testing.T) {
	store := session.NewStore(nil)
	var got *session.Session
	var ctxID uuid.UUID
	h := newSessionMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
		ctxID = domain.SessionIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil {
		t.Fatal("session not attached to context")
	}
	if ctxID != got.ID {
		t.Errorf("domain session ID = %v, want %v", ctxID, got.ID)
	}
	c := sessionCookie(t, rec)
	if c.Value != got.ID.String() {
		t.Errorf("cookie value = %q, want %q", c.Value, got.ID)
	}
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d sessions, want 1", store.Len())
	}
}

func TestSession_ReusesExistingSession(t *testing.T) {
	store := session.NewStore(nil)
	existing := store.GetOrCreate(uuid.Nil)

	var got *session.Session
	h := newSessionMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetSession(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: existing.ID.String()})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != existing {
		t.Error("middleware did not reuse the existing session")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d sessions, want 1", store.Len())
	}
}

func TestSession_IgnoresUnknownOrMalformedCookie(t *testing.T) {
	for _, value := range []string{"not-a-uuid", uuid.NewString()} {
		store := session.NewStore(nil)
		var got *session.Session
		h := newSessionMiddleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetSession(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: value})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got == nil {
			t.Fatalf("cookie %q: no session attached", value)
		}
		if got.ID.String() == value {
			t.Errorf("cookie %q: adopted a client-chosen session ID", value)
		}
		if c := sessionCookie(t, rec); c.Value != got.ID.String() {
			t.Errorf("cookie %q: reissued cookie = %q, want %q", value, c.Value, got.ID)
		}
	}
}

func TestGetSession_Missing(t *testing.T) {
	if GetSession(context.Background()) != nil {
		t.Error("GetSession() on empty context should be nil")
	}
}

// =============================================================================
// Request logger
// =============================================================================

func TestGetLogger_Fallback(t *testing.T) {
	if GetLogger(context.Background()) == nil {
		t.Error("GetLogger() should never return nil")
	}
}

// =============================================================================
// CSRF
// =============================================================================

func TestCSRF_SafeMethodIssuesToken(t *testing.T) {
	var token string
	h := CSRF(DefaultCSRFConfig(cookie.NewConfig("", false)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = GetCSRFToken(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout", nil))

	if token == "" {
		t.Fatal("CSRF token not set in context")
	}
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == CSRFCookieName && c.Value == token {
			found = true
		}
	}
	if !found {
		t.Error("CSRF cookie not set")
	}
}

func TestCSRF_RejectsMissingToken(t *testing.T) {
	h := CSRF(DefaultCSRFConfig(cookie.NewConfig("", false)))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "token-value"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCSRF_AcceptsHeaderToken(t *testing.T) {
	h := CSRF(DefaultCSRFConfig(cookie.NewConfig("", false)))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data/fields/name", strings.NewReader("value=Alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(CSRFHeaderName, "token-value")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "token-value"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMatchesPathPrefix(t *testing.T) {
	tests := []struct {
		path, skip string
		want       bool
	}{
		{"/health", "/health", true},
		{"/health/live", "/health", true},
		{"/health-evil", "/health", false},
		{"/static/app.css", "/static/", true},
		{"/checkout", "/health", false},
	}
	for _, tt := range tests {
		if got := matchesPathPrefix(tt.path, tt.skip); got != tt.want {
			t.Errorf("matchesPathPrefix(%q, %q) = %v, want %v", tt.path, tt.skip, got, tt.want)
		}
	}
}

// =============================================================================
// Limits
// =============================================================================

func TestMaxBodySize_RejectsLargeBody(t *testing.T) {
	h := MaxBodySize(8)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data", strings.NewReader("this body is too large"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})
	defer rl.Stop()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst requests should be allowed")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other keys have their own bucket")
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestRateLimiter_MiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Every(30 * time.Second), Burst: 1})
	defer rl.Stop()
	h := rl.Middleware(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
		if want == http.StatusTooManyRequests {
			if got := rec.Header().Get("Retry-After"); got != "30" {
				t.Errorf("Retry-After = %q, want 30", got)
			}
		}
	}
}

func TestRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()

	rl.Allow("a")
	rl.evict(time.Now())
	if rl.Len() != 1 {
		t.Fatalf("fresh key evicted")
	}
	rl.evict(time.Now().Add(2 * time.Minute))
	if rl.Len() != 0 {
		t.Errorf("Len() = %d after eviction, want 0", rl.Len())
	}
	rl.Stop()
}

func TestSessionKey(t *testing.T) {
	store := session.NewStore(nil)
	sess := store.GetOrCreate(uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := SessionKey(req); got != "ip:192.0.2.1" {
		t.Errorf("SessionKey() without session = %q", got)
	}

	req = req.WithContext(WithSession(req.Context(), sess))
	if got := SessionKey(req); got != "session:"+sess.ID.String() {
		t.Errorf("SessionKey() = %q, want session key", got)
	}
}

func TestTimeout_RespondsUnavailable(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	h := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("X-Late", "1")
		w.Write([]byte("too late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("X-Late") != "" {
		t.Error("handler header leaked after timeout")
	}
}

func TestTimeout_PassesThrough(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("done"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/builder/ingredients/meat/add", nil))

	if rec.Code != http.StatusCreated || rec.Body.String() != "done" {
		t.Errorf("got %d %q, want 201 done", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Handler") != "yes" {
		t.Error("handler header not copied")
	}
}

func TestTimeout_RepanicsOnCallerGoroutine(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Error("panic was swallowed")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := GetClientIP(req); got != "192.0.2.1" {
		t.Errorf("GetClientIP() = %q, want 192.0.2.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := GetClientIP(req); got != "203.0.113.9" {
		t.Errorf("GetClientIP() = %q, want 203.0.113.9", got)
	}
}

// =============================================================================
// Security headers
// =============================================================================

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "script-src 'self' https://unpkg.com") {
		t.Errorf("Content-Security-Policy = %q, want htmx CDN allowed", got)
	}

	cfg := DefaultSecurityHeadersConfig()
	cfg.HSTSMaxAge = 0
	rec = httptest.NewRecorder()
	SecurityHeaders(cfg)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want unset", got)
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"", "unmatched"},
		{"GET /{$}", "/{$}"},
		{"POST /builder/ingredients/{name}/add", "/builder/ingredients/{name}/add"},
		{"POST /checkout/contact-data/fields/{id}", "/checkout/contact-data/fields/{id}"},
		{"GET /static/{file...}", "/static/{file...}"},
		{"/legacy", "/legacy"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Pattern = tt.pattern
		if got := routeLabel(req); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetricsWithRegistry("test", prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.Handle("POST /builder/ingredients/{name}/add", m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/builder/ingredients/meat/add", nil))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/builder/ingredients/salad/add", nil))

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues(http.MethodPost, "/builder/ingredients/{name}/add", "201"))
	if got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
}

// =============================================================================
// Error responses
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestReject_HTMXTrigger(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout/contact-data", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	reject(rec, req, domain.Errorf(domain.ERATELIMIT, "", "Too many requests. Please slow down."))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	var trigger map[string]string
	if err := json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &trigger); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if trigger["shop:rejected"] != "Too many requests. Please slow down." {
		t.Errorf("HX-Trigger = %v", trigger)
	}
}

func TestReject_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/checkout/contact-data", nil)
	rec := httptest.NewRecorder()

	reject(rec, req, domain.Internal(errors.New("db password is hunter2"), "", "An unexpected error occurred"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != domain.EINTERNAL {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.EINTERNAL)
	}
	if strings.Contains(body.Error.Message, "hunter2") {
		t.Error("internal error details leaked to the client")
	}
}
