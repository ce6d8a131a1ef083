// Package middleware wraps command dispatch with cross-cutting concerns
// (logging, recovery, authorization, tracing, validation), built around
// pkg/service.Result/Dispatch. Commands are typed Go structs carried on
// a JSON wire format, not envelopes wrapping an arbitrary payload.
package middleware

import (
	"context"
	"fmt"

	"github.com/infracore/eventcore/pkg/service"
)

// Request is the middleware-visible view of one Dispatch call: enough
// metadata for logging/auth/tracing to act on without needing to know
// the concrete command or aggregate state type.
type Request struct {
	AggregateID   string
	CommandType   string
	PrincipalID   string
	CorrelationID string
	Command       any
}

// DispatchFunc executes one command dispatch, returning a service.Result.
type DispatchFunc func(ctx context.Context, req Request) (service.Result, error)

// Middleware wraps a DispatchFunc with additional behavior.
type Middleware func(next DispatchFunc) DispatchFunc

// Chain applies middlewares in the order given: the first middleware in
// the slice is outermost (runs first on the way in, last on the way out).
func Chain(handler DispatchFunc, mws ...Middleware) DispatchFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// Adapt turns a typed service.Service[S, C] into a DispatchFunc the rest
// of this package's middleware can wrap, type-asserting Request.Command
// back to C. commandType names the concrete command for logging/auth/
// tracing, since the generic service has no way to stringify C itself.
func Adapt[S, C any](svc *service.Service[S, C], commandType func(C) string) DispatchFunc {
	return func(ctx context.Context, req Request) (service.Result, error) {
		cmd, ok := req.Command.(C)
		if !ok {
			return service.Result{}, fmt.Errorf("middleware: command %T does not match expected type", req.Command)
		}
		if req.CommandType == "" {
			req.CommandType = commandType(cmd)
		}
		return svc.Dispatch(ctx, req.AggregateID, cmd, req.CorrelationID)
	}
}
