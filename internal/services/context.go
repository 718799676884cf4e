package services

import "context"

type contextKey string

const (
	jobIDKey      contextKey = "job_id"
	entryPointKey contextKey = "entry_point"
	requestIDKey  contextKey = "request_id"
)

// WithJobID annotates context with the JobInstance identifier being handled.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the JobInstance identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntryPoint annotates context with the EntryPoint a worker is bound to.
func WithEntryPoint(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, entryPointKey, id)
}

// EntryPointFromContext returns the EntryPoint identifier if present.
func EntryPointFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entryPointKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
