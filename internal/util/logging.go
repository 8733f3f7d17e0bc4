package util

import (
	"context"
	"fmt"

	"github.com/real-rm/golog"
)

// LogError logs an error with component and operation context.
//
// Parameters:
//   - logger: The logger instance to use
//   - component: The component where the error occurred (e.g., "websocket", "router", "assistant")
//   - operation: The operation that failed (e.g., "persist message", "deliver chunk")
//   - err: The error that occurred
//   - fields: Additional key-value pairs to include in the log
//
// Example:
//
//	LogError(logger, "router", "persist message", err, "room_id", roomID)
func LogError(logger *golog.Logger, component, operation string, err error, fields ...interface{}) {
	allFields := []interface{}{"error", err, "component", component}
	allFields = append(allFields, fields...)
	logger.Error(fmt.Sprintf("Failed to %s", operation), allFields...)
}

// TraceFields returns the trace id as log fields when the context carries one.
func TraceFields(ctx context.Context, fields ...interface{}) []interface{} {
	if id := TraceIDFromContext(ctx); id != "" {
		return append(fields, "trace_id", id)
	}
	return fields
}
