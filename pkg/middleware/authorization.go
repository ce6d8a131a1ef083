package middleware

import (
	"context"
	"fmt"

	"github.com/infracore/eventcore/pkg/service"
)

// Authorizer checks whether a principal may execute a command.
type Authorizer interface {
	Authorize(ctx context.Context, principalID string, commandType string, command any) error
}

// Authorization enforces authorization before a command is dispatched.
func Authorization(authorizer Authorizer) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, req Request) (service.Result, error) {
			if err := authorizer.Authorize(ctx, req.PrincipalID, req.CommandType, req.Command); err != nil {
				return service.Result{}, fmt.Errorf("authorization failed: %w", err)
			}
			return next(ctx, req)
		}
	}
}

// RoleBasedAuthorizer grants a command if the dispatching principal holds
// any role the command type requires.
type RoleBasedAuthorizer struct {
	commandRoles   map[string][]string
	principalRoles func(ctx context.Context, principalID string) ([]string, error)
}

// NewRoleBasedAuthorizer builds a role-based authorizer.
func NewRoleBasedAuthorizer(
	commandRoles map[string][]string,
	principalRoles func(ctx context.Context, principalID string) ([]string, error),
) *RoleBasedAuthorizer {
	return &RoleBasedAuthorizer{commandRoles: commandRoles, principalRoles: principalRoles}
}

func (a *RoleBasedAuthorizer) Authorize(ctx context.Context, principalID string, commandType string, _ any) error {
	required, exists := a.commandRoles[commandType]
	if !exists || len(required) == 0 {
		return nil
	}

	held, err := a.principalRoles(ctx, principalID)
	if err != nil {
		return fmt.Errorf("fetch principal roles: %w", err)
	}

	heldSet := make(map[string]bool, len(held))
	for _, role := range held {
		heldSet[role] = true
	}
	for _, role := range required {
		if heldSet[role] {
			return nil
		}
	}
	return fmt.Errorf("principal %s lacks required role for command %s (required: %v)", principalID, commandType, required)
}
