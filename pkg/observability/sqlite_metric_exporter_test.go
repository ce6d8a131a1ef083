package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/infracore/eventcore/pkg/observability"
)

func TestSQLiteMetricExporterPersistsMetrics(t *testing.T) {
	db := openTestDB(t)

	exporter, err := observability.NewSQLiteMetricExporter(observability.DefaultSQLiteExporterConfig(db))
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	counter, err := meter.Int64Counter("eventcore.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NoError(t, exporter.Export(context.Background(), &rm))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM eventcore_metrics").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewSQLiteMetricExporterRequiresDB(t *testing.T) {
	_, err := observability.NewSQLiteMetricExporter(&observability.SQLiteExporterConfig{})
	assert.Error(t, err)
}
