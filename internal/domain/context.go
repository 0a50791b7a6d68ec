// Package domain provides core business types, error codes and context
// helpers shared by the burger shop's services and handlers.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// sessionContextKey stores the shopper's session ID.
	sessionContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// --- Session Context Helpers ---

// NewContextWithSessionID returns a new context with the session ID attached.
func NewContextWithSessionID(ctx context.Context, sessionID uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionContextKey, sessionID)
}

// SessionIDFromContext retrieves the session ID from context.
// Returns uuid.Nil if no session is present.
func SessionIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(sessionContextKey).(uuid.UUID)
	return id
}

// RequireSessionID retrieves the session ID from context, panicking if not present.
// The panic is caught by the recovery middleware in HTTP handlers.
func RequireSessionID(ctx context.Context) uuid.UUID {
	id := SessionIDFromContext(ctx)
	if id == uuid.Nil {
		panic("session_id required in context but not found")
	}
	return id
}

// HasSession returns true if there is a session in context.
func HasSession(ctx context.Context) bool {
	return SessionIDFromContext(ctx) != uuid.Nil
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
