// Package middleware holds the HTTP middleware of the shop: request ids,
// request-scoped logging, shopper sessions, CSRF, rate limits and limits on
// body size and handler time.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// The handler package imports this one, so rejections are written here
// rather than through handler.ErrorResponse.

// rejectStatus maps the codes middleware rejects with to HTTP statuses.
var rejectStatus = map[string]int{
	domain.EINVALID:     http.StatusBadRequest,
	domain.EFORBIDDEN:   http.StatusForbidden,
	domain.ETOOLARGE:    http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:   http.StatusTooManyRequests,
	domain.EUNAVAILABLE: http.StatusServiceUnavailable,
}

func statusFor(code string) int {
	if status, ok := rejectStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// reject turns a request away with err. htmx does not swap error bodies, so
// the message is also sent in an HX-Trigger event for the page to show.
func reject(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := statusFor(code)

	logger := GetLogger(r.Context())
	attrs := []any{
		"code", code,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request rejected", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	if r.Header.Get("HX-Request") == "true" {
		trigger, _ := json.Marshal(map[string]string{"shop:rejected": message})
		w.Header().Set("HX-Trigger", string(trigger))
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": code, "message": message},
		})
		return
	}
	http.Error(w, message, status)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
