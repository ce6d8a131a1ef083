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

func okHandler(result service.Result) middleware.DispatchFunc {
	return func(ctx context.Context, req middleware.Request) (service.Result, error) {
		return result, nil
	}
}

func errHandler(err error) middleware.DispatchFunc {
	return func(ctx context.Context, req middleware.Request) (service.Result, error) {
		return service.Result{}, err
	}
}

func TestChainRunsMiddlewareOutermostFirst(t *testing.T) {
	var order []string
	record := func(name string) middleware.Middleware {
		return func(next middleware.DispatchFunc) middleware.DispatchFunc {
			return func(ctx context.Context, req middleware.Request) (service.Result, error) {
				order = append(order, name+":in")
				result, err := next(ctx, req)
				order = append(order, name+":out")
				return result, err
			}
		}
	}

	handler := middleware.Chain(okHandler(service.Result{}), record("a"), record("b"))
	_, err := handler(context.Background(), middleware.Request{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a:in", "b:in", "b:out", "a:out"}, order)
}

func TestAdaptRejectsMismatchedCommandType(t *testing.T) {
	dispatch := middleware.Adapt[struct{}, string](nil, func(string) string { return "" })
	_, err := dispatch(context.Background(), middleware.Request{Command: 42})
	assert.Error(t, err)
}

func TestChainPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	handler := middleware.Chain(errHandler(boom))
	_, err := handler(context.Background(), middleware.Request{})
	assert.ErrorIs(t, err, boom)
}
