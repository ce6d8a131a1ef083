package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/infracore/eventcore/pkg/service"
)

// ErrInvalidCommand is the sentinel a Validator's error wraps.
var ErrInvalidCommand = errors.New("middleware: invalid command")

// Validator validates a command payload before dispatch.
type Validator interface {
	Validate(cmd any) error
}

// Validation runs validator against the command before it reaches the
// handler.
func Validation(validator Validator) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (service.Result, error) {
			if err := validator.Validate(req.Command); err != nil {
				return service.Result{}, fmt.Errorf("command validation failed: %w", err)
			}
			return next(ctx, req)
		}
	}
}

// RequestMetadataValidation checks that dispatch metadata required for
// audit/correlation is present.
func RequestMetadataValidation() Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (service.Result, error) {
			if req.AggregateID == "" {
				return service.Result{}, fmt.Errorf("%w: aggregate_id is required", ErrInvalidCommand)
			}
			if req.CommandType == "" {
				return service.Result{}, fmt.Errorf("%w: command_type is required", ErrInvalidCommand)
			}
			return next(ctx, req)
		}
	}
}

// SelfValidating validates any command that implements its own
// Validate() error method.
type SelfValidating struct{}

func (SelfValidating) Validate(cmd any) error {
	type validatable interface{ Validate() error }
	if v, ok := cmd.(validatable); ok {
		return v.Validate()
	}
	return nil
}
