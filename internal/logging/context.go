package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID carries the request correlation id shared by trigger, ack and response records.
	FieldCorrelationID = "correlation_id"
	// FieldRequestKind is the request kind (chat, quick, file, ingest, shutdown).
	FieldRequestKind = "request_kind"
	// FieldPath is a mailbox record path.
	FieldPath = "path"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type ctxKey int

const (
	correlationKey ctxKey = iota
	requestKindKey
)

// WithCorrelationID returns a context carrying the request correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext returns the correlation id stored on ctx, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationKey).(string)
	return id, ok && id != ""
}

// WithRequestKind returns a context tagged with the request kind.
func WithRequestKind(ctx context.Context, kind string) context.Context {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKindKey, kind)
}

// RequestKindFromContext returns the request kind stored on ctx, if any.
func RequestKindFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	kind, ok := ctx.Value(requestKindKey).(string)
	return kind, ok && kind != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	if kind, ok := RequestKindFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestKind, kind))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
