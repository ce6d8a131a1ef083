package runner_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infracore/eventcore/pkg/runner"
)

func TestSlogLoggerWritesThroughToSlog(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewTextHandler(&buf, nil))

	logger := runner.NewSlogLogger(slogger)
	logger.Info("starting up", "port", 8080)
	logger.Error("failed", "reason", "timeout")
	logger.Debug("tick")

	out := buf.String()
	assert.Contains(t, out, "starting up")
	assert.Contains(t, out, "port=8080")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "reason=timeout")
}
