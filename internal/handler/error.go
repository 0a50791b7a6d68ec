package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/burgerbuilder/internal/domain"
	"github.com/dukerupert/burgerbuilder/internal/middleware"
	"github.com/dukerupert/burgerbuilder/internal/telemetry"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes err to the client using the status its domain code
// maps to. JSON clients get a structured body, everyone else plain text.
// Internal details never leave the server.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
	}
	if status >= 500 {
		logger.Error("request failed", attrs...)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
			"path": r.URL.Path,
		})
	} else {
		logger.Info("request rejected", attrs...)
	}

	if acceptsJSON(r) {
		WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
		return
	}
	http.Error(w, message, status)
}

// ValidationErrorResponse writes a 400 listing the invalid fields. Errors that
// are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	if acceptsJSON(r) {
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    domain.EINVALID,
			Message: domain.ErrorMessage(err),
			Fields:  fields,
		}})
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// NotFoundResponse writes a 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "Page not found"))
}

// InternalErrorResponse wraps err as an internal error and writes a 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// acceptsJSON checks if the client prefers JSON responses.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
