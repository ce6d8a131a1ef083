package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/middleware"
	"github.com/infracore/eventcore/pkg/service"
)

func TestRecoveryConvertsPanicToError(t *testing.T) {
	panicker := func(ctx context.Context, req middleware.Request) (service.Result, error) {
		panic("something broke")
	}

	handler := middleware.Chain(panicker, middleware.Recovery(nil))

	assert.NotPanics(t, func() {
		_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource"})
		assert.ErrorContains(t, err, "something broke")
	})
}

func TestRecoveryPassesThroughWhenNoPanic(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{AggregateID: "agg-1"}), middleware.Recovery(nil))
	result, err := handler(context.Background(), middleware.Request{})
	assert.NoError(t, err)
	assert.Equal(t, "agg-1", result.AggregateID)
}
