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

type fakeValidator struct{ err error }

func (v fakeValidator) Validate(any) error { return v.err }

func TestValidationBlocksInvalidCommand(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{}), middleware.Validation(fakeValidator{err: errors.New("bad field")}))
	_, err := handler(context.Background(), middleware.Request{})
	assert.ErrorContains(t, err, "bad field")
}

func TestValidationAllowsValidCommand(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{AggregateID: "agg-1"}), middleware.Validation(fakeValidator{}))
	result, err := handler(context.Background(), middleware.Request{})
	require.NoError(t, err)
	assert.Equal(t, "agg-1", result.AggregateID)
}

func TestRequestMetadataValidationRequiresAggregateID(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{}), middleware.RequestMetadataValidation())
	_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource"})
	assert.ErrorIs(t, err, middleware.ErrInvalidCommand)
}

func TestRequestMetadataValidationRequiresCommandType(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{}), middleware.RequestMetadataValidation())
	_, err := handler(context.Background(), middleware.Request{AggregateID: "agg-1"})
	assert.ErrorIs(t, err, middleware.ErrInvalidCommand)
}

func TestRequestMetadataValidationPassesWhenComplete(t *testing.T) {
	handler := middleware.Chain(okHandler(service.Result{}), middleware.RequestMetadataValidation())
	_, err := handler(context.Background(), middleware.Request{AggregateID: "agg-1", CommandType: "RegisterResource"})
	assert.NoError(t, err)
}

type selfValidatingCommand struct{ err error }

func (c selfValidatingCommand) Validate() error { return c.err }

func TestSelfValidatingDelegatesToCommandValidate(t *testing.T) {
	v := middleware.SelfValidating{}
	assert.NoError(t, v.Validate(selfValidatingCommand{}))
	assert.Error(t, v.Validate(selfValidatingCommand{err: errors.New("invalid")}))
}

func TestSelfValidatingIgnoresCommandsWithoutValidate(t *testing.T) {
	v := middleware.SelfValidating{}
	assert.NoError(t, v.Validate("not a command"))
}
