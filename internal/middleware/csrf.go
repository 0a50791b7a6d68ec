package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"mime"
	"net/http"
	"strings"

	"github.com/dukerupert/burgerbuilder/internal/cookie"
	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// CSRF uses the double-submit pattern: the token lives in a cookie and every
// unsafe request must echo it. Pages put it in a hidden form field and in
// the hx-headers of <body>, so htmx requests send it as a header.
const (
	CSRFCookieName    = "csrf_token"
	CSRFHeaderName    = "X-CSRF-Token"
	CSRFFormFieldName = "csrf_token"

	// CSRFContextKey is the context key for the CSRF token
	CSRFContextKey contextKey = "csrf_token"

	csrfTokenBytes = 32
)

// CSRFConfig configures CSRF protection.
type CSRFConfig struct {
	CookieConfig *cookie.Config

	// CookieName defaults to CSRFCookieName.
	CookieName string

	// CookieMaxAge is the cookie lifetime in seconds. Default: 24 hours.
	CookieMaxAge int

	// SkipPaths are path prefixes that bypass the check. A prefix matches
	// only at a path boundary: /health does not cover /health-check.
	SkipPaths []string
}

// DefaultCSRFConfig protects everything but the ops endpoints.
func DefaultCSRFConfig(cookieConfig *cookie.Config) CSRFConfig {
	return CSRFConfig{
		CookieConfig: cookieConfig,
		CookieName:   CSRFCookieName,
		CookieMaxAge: 86400,
		SkipPaths:    []string{"/metrics", "/health"},
	}
}

// CSRF issues a token cookie when missing and rejects unsafe requests whose
// submitted token does not match it with 403.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.CookieConfig == nil {
		panic("csrf: CookieConfig is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = CSRFCookieName
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = 86400
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.SkipPaths {
				if matchesPathPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := cookie.Get(r, cfg.CookieName)
			if token == "" {
				var err error
				if token, err = newCSRFToken(); err != nil {
					// Fail closed rather than issue a guessable token.
					reject(w, r, domain.Internal(err, "csrf.token", "An unexpected error occurred"))
					return
				}
				setCSRFCookie(w, token, cfg)
			}

			r = r.WithContext(context.WithValue(r.Context(), CSRFContextKey, token))

			if !isSafeMethod(r.Method) && !tokensMatch(token, submittedCSRFToken(r)) {
				reject(w, r, domain.Errorf(domain.EFORBIDDEN, "", "Your session has expired. Please reload the page and try again."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetCSRFToken returns the token for templates, or "" outside CSRF.
func GetCSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFContextKey).(string)
	return token
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setCSRFCookie writes the token cookie. It is not HttpOnly so scripts may
// read it; the page template already carries the token for htmx.
func setCSRFCookie(w http.ResponseWriter, token string, cfg CSRFConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Domain:   cfg.CookieConfig.Domain,
		Path:     "/",
		MaxAge:   cfg.CookieMaxAge,
		Secure:   cfg.CookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// submittedCSRFToken reads the header first, then the urlencoded form. The
// shop posts no multipart forms.
func submittedCSRFToken(r *http.Request) string {
	if token := r.Header.Get(CSRFHeaderName); token != "" {
		return token
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return ""
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.PostForm.Get(CSRFFormFieldName)
}

func tokensMatch(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// matchesPathPrefix reports whether path is prefix or lies below it.
func matchesPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if strings.HasSuffix(prefix, "/") || len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
