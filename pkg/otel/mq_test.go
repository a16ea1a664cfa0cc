package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestMQHeaderCarrier_RoundTrip(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := map[string]interface{}{"x-trace-id": "abc"}
	prop := propagation.TraceContext{}
	prop.Inject(ctx, NewMQHeaderCarrier(headers))

	assert.NotEmpty(t, headers["traceparent"])
	assert.Equal(t, "abc", headers["x-trace-id"])

	extracted := prop.Extract(context.Background(), NewMQHeaderCarrier(headers))
	assert.Equal(t, span.SpanContext().TraceID(), spanContextFrom(extracted).TraceID())
}

func TestMQHeaderCarrier_NilHeaders(t *testing.T) {
	c := NewMQHeaderCarrier(nil)
	assert.Equal(t, "", c.Get("traceparent"))
	c.Set("traceparent", "x")
	assert.Equal(t, "x", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
