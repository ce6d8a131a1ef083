package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infracore/eventcore/pkg/middleware"
	"github.com/infracore/eventcore/pkg/service"
)

var assertErr = errors.New("not authorized")

type fakeAuthorizer struct {
	err error
}

func (a fakeAuthorizer) Authorize(context.Context, string, string, any) error { return a.err }

func TestAuthorizationBlocksOnError(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{}), middleware.Authorization(fakeAuthorizer{err: assertErr}))
	_, err := handler(context.Background(), middleware.Request{})
	assert.Error(t, err)
}

func TestAuthorizationAllowsWhenAuthorizerApproves(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{AggregateID: "agg-1"}), middleware.Authorization(fakeAuthorizer{}))
	result, err := handler(context.Background(), middleware.Request{})
	require.NoError(t, err)
	assert.Equal(t, "agg-1", result.AggregateID)
}

func TestRoleBasedAuthorizerGrantsWhenPrincipalHoldsRequiredRole(t *testing.T) {
	authz := middleware.NewRoleBasedAuthorizer(
		map[string][]string{"RegisterResource": {"admin"}},
		func(context.Context, string) ([]string, error) { return []string{"viewer", "admin"}, nil },
	)
	assert.NoError(t, authz.Authorize(context.Background(), "user-1", "RegisterResource", nil))
}

func TestRoleBasedAuthorizerDeniesWhenPrincipalLacksRole(t *testing.T) {
	authz := middleware.NewRoleBasedAuthorizer(
		map[string][]string{"RegisterResource": {"admin"}},
		func(context.Context, string) ([]string, error) { return []string{"viewer"}, nil },
	)
	assert.Error(t, authz.Authorize(context.Background(), "user-1", "RegisterResource", nil))
}

func TestRoleBasedAuthorizerAllowsUnrestrictedCommands(t *testing.T) {
	authz := middleware.NewRoleBasedAuthorizer(
		map[string][]string{},
		func(context.Context, string) ([]string, error) { return nil, nil },
	)
	assert.NoError(t, authz.Authorize(context.Background(), "user-1", "AnythingGoes", nil))
}
