package storefront

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/handler"
	"github.com/dukerupert/burgerbuilder/internal/middleware"
	"github.com/dukerupert/burgerbuilder/internal/session"
)

// BaseTemplateData returns common data for all templates
func BaseTemplateData(r *http.Request) map[string]interface{} {
	data := map[string]interface{}{
		"Year":      time.Now().Year(),
		"CSRFToken": middleware.GetCSRFToken(r.Context()),
		"Path":      r.URL.Path,
	}

	// Surface the last order failure until it is dismissed
	if sess := middleware.GetSession(r.Context()); sess != nil {
		status := sess.Status()
		data["Status"] = status
		if status.Err != nil {
			data["Error"] = domain.ErrorMessage(status.Err)
		}
	}

	return data
}

// sessionFrom returns the request's shopper session. A missing session means
// the route was registered without the Session middleware.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		handler.InternalErrorResponse(w, r, errors.New("no session in request context"))
		return nil, false
	}
	return sess, true
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// localRedirect returns target when it is a path on this site, fallback
// otherwise.
func localRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
