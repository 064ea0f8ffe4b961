package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across the store.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Entities
	FieldStore      = "store"
	FieldResource   = "resource"
	FieldDataSet    = "dataset"
	FieldKey        = "key"
	FieldData       = "data"
	FieldAnnotation = "annotation"
	FieldSubStore   = "substore"
	FieldHandle     = "handle"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldMode      = "mode"
	FieldQuery     = "query"
	FieldVariable  = "variable"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount      = "count"
	FieldBatchSize  = "batch_size"
	FieldTotalCount = "total_count"

	// Text
	FieldBegin = "begin"
	FieldEnd   = "end"
	FieldFile  = "file"
)

type contextKey string

const (
	queryKey     contextKey = "logger_query"
	componentKey contextKey = "logger_component"
)

// WithQuery adds a query name to the context for logging
func WithQuery(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, queryKey, name)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if name, ok := ctx.Value(queryKey).(string); ok && name != "" {
		fields = append(fields, FieldQuery, name)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns the global logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	store := stam.NewStore(cfg, stam.WithLogger(logger.ComponentLogger("store")))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
