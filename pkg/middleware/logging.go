package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/infracore/eventcore/pkg/service"
)

// Logging logs command dispatch with timing information using slog.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (service.Result, error) {
			start := time.Now()

			logger.InfoContext(ctx, "dispatching command",
				slog.String("command_type", req.CommandType),
				slog.String("aggregate_id", req.AggregateID),
				slog.String("principal_id", req.PrincipalID),
				slog.String("correlation_id", req.CorrelationID),
			)

			result, err := next(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "command dispatch failed",
					slog.String("command_type", req.CommandType),
					slog.String("aggregate_id", req.AggregateID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return result, err
			}

			logger.InfoContext(ctx, "command dispatched",
				slog.String("command_type", req.CommandType),
				slog.String("aggregate_id", req.AggregateID),
				slog.Int("events_count", len(result.Events)),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)

			return result, nil
		}
	}
}
