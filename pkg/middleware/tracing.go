package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/infracore/eventcore/pkg/service"
)

// Tracing starts an OpenTelemetry span around each dispatch.
func Tracing(tracerName string) Middleware {
	if tracerName == "" {
		tracerName = "github.com/infracore/eventcore"
	}
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing for a caller-supplied tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (service.Result, error) {
			commandType := req.CommandType
			if commandType == "" {
				commandType = "unknown"
			}

			spanCtx, span := tracer.Start(ctx, fmt.Sprintf("command.%s", commandType),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("command.type", commandType),
					attribute.String("command.aggregate_id", req.AggregateID),
					attribute.String("command.principal_id", req.PrincipalID),
					attribute.String("command.correlation_id", req.CorrelationID),
				),
			)
			defer span.End()

			result, err := next(spanCtx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}

			span.SetAttributes(attribute.Int("events.count", len(result.Events)))
			if len(result.Events) > 0 {
				types := make([]string, len(result.Events))
				for i, e := range result.Events {
					types[i] = e.EventType
				}
				span.SetAttributes(attribute.StringSlice("events.types", types))
			}
			span.SetStatus(codes.Ok, "command dispatched")
			return result, nil
		}
	}
}
