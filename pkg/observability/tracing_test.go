package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/infracore/eventcore/pkg/observability"
)

func TestTraceIDAndSpanIDAreEmptyWithoutAnActiveSpan(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", observability.TraceID(ctx))
	assert.Equal(t, "", observability.SpanID(ctx))
}

func TestStartSpanAppliesOptions(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	_, span := observability.StartSpan(context.Background(), tracer, "op",
		observability.WithAttributes(observability.AttrAggregateID.String("agg-1")),
	)
	defer span.End()

	assert.NotNil(t, span)
}

func TestEndSpanRecordsErrorWhenGiven(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	_, span := tracer.Start(context.Background(), "op")

	assert.NotPanics(t, func() {
		observability.EndSpan(span, errors.New("boom"))
	})
}

func TestSetSpanErrorDoesNotPanicOnNoopSpan(t *testing.T) {
	ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.NotPanics(t, func() {
		observability.SetSpanError(ctx, errors.New("boom"))
	})
}

func TestCommandAttrsOmitsEmptyCommandID(t *testing.T) {
	attrs := observability.CommandAttrs("RegisterResource", "")
	assert.Len(t, attrs, 1)
}

func TestCommandAttrsIncludesCommandIDWhenSet(t *testing.T) {
	attrs := observability.CommandAttrs("RegisterResource", "cmd-1")
	assert.Len(t, attrs, 2)
}
