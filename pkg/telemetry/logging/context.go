package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for retention run ids.
	RunIDKey contextKey = "run_id"

	// PlanIDKey is the context key for restore plan ids.
	PlanIDKey contextKey = "plan_id"

	// PartitionKey is the context key for partition ids.
	PartitionKey contextKey = "partition"
)

// WithRunID adds a retention run id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the retention run id from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithPlanID adds a restore plan id to the context.
func WithPlanID(ctx context.Context, planID string) context.Context {
	return context.WithValue(ctx, PlanIDKey, planID)
}

// GetPlanID retrieves the restore plan id from the context.
func GetPlanID(ctx context.Context) string {
	if planID, ok := ctx.Value(PlanIDKey).(string); ok {
		return planID
	}
	return ""
}

// WithPartition adds a partition id to the context.
func WithPartition(ctx context.Context, partition int) context.Context {
	return context.WithValue(ctx, PartitionKey, partition)
}

// GetPartition retrieves the partition id from the context.
func GetPartition(ctx context.Context) (int, bool) {
	partition, ok := ctx.Value(PartitionKey).(int)
	return partition, ok
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, "run_id", runID)
	}
	if planID := GetPlanID(ctx); planID != "" {
		fields = append(fields, "plan_id", planID)
	}
	if partition, ok := GetPartition(ctx); ok {
		fields = append(fields, "partition", partition)
	}

	// Correlate with the active span, if any
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}

	return fields
}

// FromContext returns logger with the fields carried by ctx attached.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
