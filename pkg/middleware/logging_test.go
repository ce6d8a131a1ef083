package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/middleware"
	"github.com/infracore/eventcore/pkg/service"
)

func TestLoggingLogsSuccessfulDispatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := middleware.Chain(okHandler(service.Result{AggregateID: "agg-1"}), middleware.Logging(logger))
	_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource", AggregateID: "agg-1"})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "dispatching command")
	assert.Contains(t, buf.String(), "command dispatched")
	assert.Contains(t, buf.String(), "RegisterResource")
}

func TestLoggingLogsFailedDispatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := middleware.Chain(errHandler(errors.New("rejected")), middleware.Logging(logger))
	_, err := handler(context.Background(), middleware.Request{CommandType: "RegisterResource"})

	assert.Error(t, err)
	assert.Contains(t, buf.String(), "command dispatch failed")
	assert.Contains(t, buf.String(), "rejected")
}
