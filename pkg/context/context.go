// Package context carries load tracing values through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Placeholders returned when a value is absent from the context.
const (
	UnknownLoadID    = "unknown-load"
	UnknownOperation = "unknown-operation"
)

type contextKey string

const (
	loadIDKey    contextKey = "load_id"
	operationKey contextKey = "operation"
	startTimeKey contextKey = "start_time"
)

// WithLoadID adds a load ID to the context, generating one if empty
func WithLoadID(parent context.Context, loadID string) context.Context {
	if loadID == "" {
		loadID = GenerateLoadID()
	}
	return context.WithValue(parent, loadIDKey, loadID)
}

// GetLoadID retrieves the load ID from context
func GetLoadID(ctx context.Context) string {
	if id, ok := ctx.Value(loadIDKey).(string); ok && id != "" {
		return id
	}
	return UnknownLoadID
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return UnknownOperation
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// HasStartTime reports whether a start time was recorded
func HasStartTime(ctx context.Context) bool {
	_, ok := ctx.Value(startTimeKey).(time.Time)
	return ok
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	return time.Since(GetStartTime(ctx))
}

// GenerateLoadID creates a new unique load ID
func GenerateLoadID() string {
	return "load_" + uuid.New().String()
}

// EnrichContext tags a context with a load ID (if absent) and a start time
func EnrichContext(parent context.Context) context.Context {
	ctx := parent
	if GetLoadID(ctx) == UnknownLoadID {
		ctx = WithLoadID(ctx, GenerateLoadID())
	}
	return WithStartTime(ctx, time.Now())
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"load_id":     GetLoadID(ctx),
		"operation":   GetOperation(ctx),
		"duration_ms": GetDuration(ctx).Milliseconds(),
	}
}
