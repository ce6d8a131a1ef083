package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/infracore/eventcore/pkg/envelope"
	"github.com/infracore/eventcore/pkg/middleware"
	"github.com/infracore/eventcore/pkg/service"
)

func TestTracingRecordsSpanOnSuccess(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	handler := middleware.Chain(
		okHandler(service.Result{Events: []envelope.StoredEvent{{EventType: "ResourceRegistered"}}}),
		middleware.TracingWithTracer(tp.Tracer("test")),
	)
	_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource", AggregateID: "agg-1"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "command.RegisterResource", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestTracingRecordsErrorOnFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	handler := middleware.Chain(
		errHandler(errors.New("rejected")),
		middleware.TracingWithTracer(tp.Tracer("test")),
	)
	_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource"})
	assert.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Ok, spans[0].Status().Code)
}
