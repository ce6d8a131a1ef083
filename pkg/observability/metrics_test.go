package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/infracore/eventcore/pkg/observability"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := observability.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, m.CommandDuration)
	require.NotNil(t, m.CommandTotal)
	require.NotNil(t, m.EventsAppended)
	require.NotNil(t, m.ProjectionLag)
}

func TestRecordCommandCountsErrorsAndTotals(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observability.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordCommand(context.Background(), "RegisterResource", 10*time.Millisecond, nil)
	m.RecordCommand(context.Background(), "RegisterResource", 5*time.Millisecond, errors.New("rejected"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			names[metric.Name] = true
		}
	}
	require.True(t, names["eventcore.command.total"])
	require.True(t, names["eventcore.command.errors"])
}
