package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/burgerbuilder/internal/cookie"
	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/session"
)

const (
	// SessionContextKey is the context key for the shopper session
	SessionContextKey contextKey = "session"
)

// SessionConfig configures the Session middleware.
type SessionConfig struct {
	Store        *session.Store
	CookieConfig *cookie.Config

	// CookieName defaults to cookie.SessionCookieName.
	CookieName string

	// TTL is the cookie lifetime; it should match the store TTL.
	TTL time.Duration
}

// Session attaches the shopper session named by the session cookie to the
// request, creating a session and cookie when the cookie is missing, malformed
// or names a session that has expired. The cookie is refreshed on every
// request so it lives as long as the session does.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.Store == nil || cfg.CookieConfig == nil {
		panic("session: Store and CookieConfig are required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = cookie.SessionCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(cookie.Get(r, cfg.CookieName))
			if err != nil {
				id = uuid.Nil
			}

			sess, ok := cfg.Store.Get(id)
			if !ok {
				// Never adopt an ID the client made up.
				sess = cfg.Store.GetOrCreate(uuid.Nil)
			}
			cfg.CookieConfig.SetSession(w, cfg.CookieName, sess.ID.String(), int(cfg.TTL.Seconds()))

			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			ctx = domain.NewContextWithSessionID(ctx, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the shopper session from the context, or nil.
func GetSession(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(SessionContextKey).(*session.Session); ok {
		return sess
	}
	return nil
}

// WithSession returns a copy of ctx carrying sess. It is meant for tests
// and for handlers invoked outside the Session middleware.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	ctx = context.WithValue(ctx, SessionContextKey, sess)
	return domain.NewContextWithSessionID(ctx, sess.ID)
}
