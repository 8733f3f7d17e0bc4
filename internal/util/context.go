// Package util provides common utility functions to eliminate code duplication.
package util

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// traceIDKey is the context key for trace/request IDs.
const traceIDKey contextKey = "trace_id"

// NewTimeoutContext creates a new context with the specified timeout.
//
// Example:
//
//	ctx, cancel := util.NewTimeoutContext(10 * time.Second)
//	defer cancel()
func NewTimeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewDefaultTimeoutContext creates a new context with a default 10-second timeout.
// Use this for standard database operations.
func NewDefaultTimeoutContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// NewDetachedContext derives a context that keeps the parent's values (trace id)
// but not its cancellation. Work that must outlive the connection that
// triggered it, such as an AI generation, runs under one of these.
func NewDetachedContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(parent)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}

// NewContextWithTraceID creates a child context with a generated trace ID.
// The trace ID is a 16-byte random hex string (32 characters).
func NewContextWithTraceID(parent context.Context) context.Context {
	return context.WithValue(parent, traceIDKey, generateTraceID())
}

// ContextWithTraceID creates a child context with the provided trace ID.
func ContextWithTraceID(parent context.Context, traceID string) context.Context {
	return context.WithValue(parent, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns empty string if no trace ID is set.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}
