package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementAttr = 500

// DBSpan starts a client span for one PostgreSQL statement, named like
// "db.update phases".
func DBSpan(ctx context.Context, operation, table, statement string) (context.Context, trace.Span) {
	if len(statement) > maxStatementAttr {
		statement = statement[:maxStatementAttr]
	}
	return Tracer().Start(ctx, "db."+operation+" "+table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemKey.String("postgresql"),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.sql.table", table),
			attribute.String("db.statement", statement),
		),
	)
}
