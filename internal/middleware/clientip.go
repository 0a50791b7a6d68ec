package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientIPContextKey is the context key for the client IP address.
const ClientIPContextKey contextKey = "client_ip"

// GetClientIP returns the address of the shopper. The first X-Forwarded-For
// hop wins, then X-Real-IP, then the connection address. The headers are
// trusted, so the shop must only be reachable through its proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithClientIP stores the client IP in the request context for logging and
// Sentry.
func WithClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPContextKey, GetClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIPFromContext returns the IP stored by WithClientIP, or "".
func GetClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPContextKey).(string)
	return ip
}
