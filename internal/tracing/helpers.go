package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names.
const (
	scopeDB      = "rendezvous/db"
	scopeRanking = "rendezvous/ranking"
)

// DBOperation names the kind of statement a DB span covers. The ranking
// API only reads, so queries are the one kind in use.
type DBOperation string

// DBOperationQuery is a SELECT.
const DBOperationQuery DBOperation = "query"

// StartDBSpan opens a client span named "<operation> <table>" for a
// repository call. The returned func ends the span and records err on it,
// so callers with a named error result can write:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", string(operation)),
	}
	name := string(operation)
	if table != "" {
		name += " " + table
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}

	ctx, span := otel.Tracer(scopeDB).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, endWith(span)
}

// StartScoringSpan opens an internal span named "score <kind>" around an
// in-memory ranking pass over candidates items.
func StartScoringSpan(ctx context.Context, kind string, candidates int) (context.Context, func(error)) {
	ctx, span := otel.Tracer(scopeRanking).Start(ctx, "score "+kind,
		trace.WithAttributes(
			attribute.String("ranking.kind", kind),
			attribute.Int("ranking.candidates", candidates),
		),
	)
	return ctx, endWith(span)
}

// AddEvent adds an event to the span in ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func endWith(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
