package logging

import (
	"context"
	"log/slog"

	"jobgraph/internal/services"
)

// Standard structured keys.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldEntryPoint    = "entry_point"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering (job_started, job_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint is the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact    = "impact"
	FieldErrorKind = "error_kind"
	// FieldState is a dispatcher state machine state.
	FieldState = "state"
	// FieldStatus is a JobInstance status.
	FieldStatus = "status"
)

// WithContext returns logger tagged with the job, entry point and
// correlation identifiers stored in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := services.JobIDFromContext(ctx); ok {
		args = append(args, slog.String(FieldJobID, id))
	}
	if ep, ok := services.EntryPointFromContext(ctx); ok {
		args = append(args, slog.String(FieldEntryPoint, ep))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, slog.String(FieldCorrelationID, rid))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
