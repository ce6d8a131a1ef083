package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/infracore/eventcore/pkg/service"
)

// Recovery recovers from panics during command dispatch, converting them
// to errors so one bad handler can't take down the dispatch loop.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (result service.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "command dispatch panicked",
						slog.String("command_type", req.CommandType),
						slog.String("aggregate_id", req.AggregateID),
						slog.Any("panic", r),
						slog.String("stack_trace", string(debug.Stack())),
					)
					err = fmt.Errorf("command dispatch panicked: %v", r)
					result = service.Result{}
				}
			}()
			return next(ctx, req)
		}
	}
}
